// Package recurrence computes the concrete service dates a recurring pattern
// implies within a date window.
package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tazhate/flock/internal/domain"
)

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

const day = 24 * time.Hour

// ComputeDates returns the ascending dates the pattern produces within
// [windowStart, windowEnd], clipped to the pattern's own start/end bounds.
// Dates on or before the pattern's LastGeneratedDate are never returned, so a
// repeated call after advancing the watermark yields only new dates.
// A pattern missing the fields its type requires yields no dates.
func ComputeDates(p domain.RecurrencePattern, windowStart, windowEnd time.Time) []time.Time {
	if !p.HasRequiredFields() {
		return nil
	}

	lo, hi, ok := effectiveWindow(p, windowStart, windowEnd)
	if !ok {
		return nil
	}

	opt, ok := options(p)
	if !ok {
		return nil
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil
	}

	dates := r.Between(lo, hi, true)
	for i := range dates {
		dates[i] = domain.CivilDate(dates[i])
	}
	return dates
}

// FormatDates renders dates as YYYY-MM-DD strings.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(domain.DateLayout)
	}
	return out
}

// RRule returns the RFC 5545 RRULE value for the pattern, e.g.
// "FREQ=MONTHLY;BYDAY=+2SU". The second result is false for incomplete patterns.
func RRule(p domain.RecurrencePattern) (string, bool) {
	if !p.HasRequiredFields() {
		return "", false
	}
	opt, ok := options(p)
	if !ok {
		return "", false
	}
	if p.EndDate != nil {
		opt.Until = domain.CivilDate(*p.EndDate)
	}
	return opt.RRuleString(), true
}

// FirstOnOrAfter returns the first date >= from that falls on weekday.
func FirstOnOrAfter(from time.Time, weekday domain.Weekday) time.Time {
	from = domain.CivilDate(from)
	diff := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, diff)
}

func effectiveWindow(p domain.RecurrencePattern, windowStart, windowEnd time.Time) (time.Time, time.Time, bool) {
	lo := latest(domain.CivilDate(p.StartDate), domain.CivilDate(windowStart))
	if p.LastGeneratedDate != nil {
		lo = latest(lo, domain.CivilDate(*p.LastGeneratedDate).Add(day))
	}

	hi := domain.CivilDate(windowEnd)
	if p.EndDate != nil && p.EndDate.Before(hi) {
		hi = domain.CivilDate(*p.EndDate)
	}
	return lo, hi, !lo.After(hi)
}

// options builds the rrule for the pattern. Weekly cadences are anchored on
// the first matching weekday on or after the pattern start, so the phase of a
// bi-weekly or custom pattern never depends on the query window. Anchoring
// on the window start instead would shift the cadence whenever generation
// resumes after the watermark.
func options(p domain.RecurrencePattern) (rrule.ROption, bool) {
	start := domain.CivilDate(p.StartDate)
	weekday := *p.DayOfWeek

	switch p.Type {
	case domain.PatternWeekly:
		return weeklyOption(start, weekday, 1), true
	case domain.PatternBiWeekly:
		return weeklyOption(start, weekday, 2), true
	case domain.PatternCustom:
		return weeklyOption(start, weekday, *p.IntervalWeeks), true
	case domain.PatternMonthly:
		return rrule.ROption{
			Freq:      rrule.MONTHLY,
			Dtstart:   start,
			Interval:  1,
			Byweekday: []rrule.Weekday{rruleWeekdays[weekday].Nth(*p.WeekOfMonth)},
		}, true
	}
	return rrule.ROption{}, false
}

func weeklyOption(start time.Time, weekday domain.Weekday, interval int) rrule.ROption {
	return rrule.ROption{
		Freq:     rrule.WEEKLY,
		Dtstart:  FirstOnOrAfter(start, weekday),
		Interval: interval,
	}
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
