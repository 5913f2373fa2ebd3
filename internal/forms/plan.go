package forms

import (
	"github.com/tazhate/flock/internal/domain"
)

type Action string

const (
	ActionInsert  Action = "insert"
	ActionUpdate  Action = "update"
	ActionReplace Action = "replace"
)

// Plan is the write a submission resolves to.
type Plan struct {
	Action Action
	ID     int64 // target row for update and replace
	Values domain.Record
}

// BuildPlan decides the write for a processed submission against the record
// found by lookup (nil when none matched).
//
// merge keeps existing columns, overlays non-empty submitted values and
// appends new notes to existing notes. replace writes exactly the submitted
// columns; the store clears the others. insert_only always inserts.
func BuildPlan(res *Result, existing domain.Record, strategy MergeStrategy) Plan {
	if existing == nil || strategy == StrategyInsertOnly {
		return Plan{Action: ActionInsert, Values: res.Output("")}
	}

	out := res.Output(existing.String(StatusColumn))
	if strategy == StrategyReplace {
		return Plan{Action: ActionReplace, ID: existing.ID(), Values: out}
	}

	merged := make(domain.Record, len(existing)+len(out))
	for k, v := range existing {
		if k == "id" || k == "created_at" {
			continue
		}
		merged[k] = v
	}
	for k, v := range out {
		if k == NotesColumn || isEmpty(v) {
			continue
		}
		merged[k] = v
	}
	if notes := res.Notes(); notes != "" {
		if prev := existing.String(NotesColumn); prev != "" {
			notes = prev + notesSeparator + notes
		}
		merged[NotesColumn] = notes
	}
	return Plan{Action: ActionUpdate, ID: existing.ID(), Values: merged}
}
