package recurrence

// Partition splits candidate dates into those with no existing record
// (toCreate) and those already present (skipped), preserving candidate order.
// Matching is exact YYYY-MM-DD string equality.
func Partition(candidates, existing []string) (toCreate, skipped []string) {
	have := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		have[d] = struct{}{}
	}
	for _, d := range candidates {
		if _, ok := have[d]; ok {
			skipped = append(skipped, d)
			continue
		}
		toCreate = append(toCreate, d)
	}
	return toCreate, skipped
}
