package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for every stored date.
const DateLayout = "2006-01-02"

// Weekday represents a day of the week (0 = Sunday, 1 = Monday, ...)
type Weekday int

const (
	WeekdaySunday    Weekday = 0
	WeekdayMonday    Weekday = 1
	WeekdayTuesday   Weekday = 2
	WeekdayWednesday Weekday = 3
	WeekdayThursday  Weekday = 4
	WeekdayFriday    Weekday = 5
	WeekdaySaturday  Weekday = 6
)

func (d Weekday) Valid() bool {
	return d >= WeekdaySunday && d <= WeekdaySaturday
}

// WeekdayName returns the English name for the weekday
func WeekdayName(d Weekday) string {
	if !d.Valid() {
		return ""
	}
	return time.Weekday(d).String()
}

// ParseWeekday parses a full or three-letter English weekday name, or a digit 0-6.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := WeekdaySunday; d <= WeekdaySaturday; d++ {
		name := strings.ToLower(WeekdayName(d))
		if s == name || s == name[:3] || s == fmt.Sprint(int(d)) {
			return d, true
		}
	}
	return 0, false
}

type PatternType string

const (
	PatternWeekly   PatternType = "weekly"
	PatternBiWeekly PatternType = "biWeekly"
	PatternMonthly  PatternType = "monthly"
	PatternCustom   PatternType = "custom"
)

func (t PatternType) Valid() bool {
	switch t {
	case PatternWeekly, PatternBiWeekly, PatternMonthly, PatternCustom:
		return true
	}
	return false
}

// RecurrencePattern describes how services recur for a template.
// Dates are calendar dates at UTC midnight.
type RecurrencePattern struct {
	ID                int64
	TemplateID        int64
	Type              PatternType
	DayOfWeek         *Weekday // weekly, biWeekly, monthly, custom
	WeekOfMonth       *int     // monthly, 1-5
	IntervalWeeks     *int     // custom, >= 1
	StartDate         time.Time
	EndDate           *time.Time
	LastGeneratedDate *time.Time
	IsActive          bool
	CreatedAt         time.Time
}

// HasRequiredFields reports whether the fields the pattern type needs are present.
// A pattern without them generates nothing.
func (p *RecurrencePattern) HasRequiredFields() bool {
	if p.DayOfWeek == nil || !p.DayOfWeek.Valid() {
		return false
	}
	switch p.Type {
	case PatternWeekly, PatternBiWeekly:
		return true
	case PatternMonthly:
		return p.WeekOfMonth != nil && *p.WeekOfMonth >= 1 && *p.WeekOfMonth <= 5
	case PatternCustom:
		return p.IntervalWeeks != nil && *p.IntervalWeeks >= 1
	}
	return false
}

// Describe returns a short human description, e.g. "2nd Sunday of the month".
func (p *RecurrencePattern) Describe() string {
	if !p.HasRequiredFields() {
		return "incomplete pattern"
	}
	day := WeekdayName(*p.DayOfWeek)
	switch p.Type {
	case PatternWeekly:
		return "every " + day
	case PatternBiWeekly:
		return "every other " + day
	case PatternMonthly:
		return fmt.Sprintf("%s %s of the month", ordinal(*p.WeekOfMonth), day)
	case PatternCustom:
		return fmt.Sprintf("every %d weeks on %s", *p.IntervalWeeks, day)
	}
	return ""
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// CivilDate truncates t to its calendar date at UTC midnight.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
