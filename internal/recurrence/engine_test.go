package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/domain"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func datePtr(t *testing.T, s string) *time.Time {
	d := date(t, s)
	return &d
}

func weekday(d domain.Weekday) *domain.Weekday { return &d }
func intPtr(n int) *int                        { return &n }

func TestComputeDates_WeeklySundaysInJanuary(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:      domain.PatternWeekly,
		DayOfWeek: weekday(domain.WeekdaySunday),
		StartDate: date(t, "2024-01-01"),
		EndDate:   datePtr(t, "2024-01-31"),
	}

	got := FormatDates(ComputeDates(p, date(t, "2024-01-01"), date(t, "2024-01-31")))
	assert.Equal(t, []string{"2024-01-07", "2024-01-14", "2024-01-21", "2024-01-28"}, got)
}

func TestComputeDates_MonthlySecondSunday(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:        domain.PatternMonthly,
		DayOfWeek:   weekday(domain.WeekdaySunday),
		WeekOfMonth: intPtr(2),
		StartDate:   date(t, "2024-01-01"),
	}

	got := FormatDates(ComputeDates(p, date(t, "2024-02-01"), date(t, "2024-02-29")))
	assert.Equal(t, []string{"2024-02-11"}, got)
}

func TestComputeDates_MonthlyFifthOccurrenceSkipsShortMonths(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:        domain.PatternMonthly,
		DayOfWeek:   weekday(domain.WeekdaySunday),
		WeekOfMonth: intPtr(5),
		StartDate:   date(t, "2024-01-01"),
	}

	// 2024 months with five Sundays: March, June, September, December.
	got := FormatDates(ComputeDates(p, date(t, "2024-01-01"), date(t, "2024-12-31")))
	assert.Equal(t, []string{"2024-03-31", "2024-06-30", "2024-09-29", "2024-12-29"}, got)
}

func TestComputeDates_MonthlyWindowStartsMidMonth(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:        domain.PatternMonthly,
		DayOfWeek:   weekday(domain.WeekdaySunday),
		WeekOfMonth: intPtr(2),
		StartDate:   date(t, "2024-01-01"),
	}

	tests := []struct {
		name  string
		start string
		want  []string
	}{
		{"window starts on the occurrence", "2024-02-11", []string{"2024-02-11", "2024-03-10"}},
		{"window starts the day after", "2024-02-12", []string{"2024-03-10"}},
		{"window starts the day before", "2024-02-10", []string{"2024-02-11", "2024-03-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDates(ComputeDates(p, date(t, tt.start), date(t, "2024-03-31")))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeDates_BiWeeklyAndCustomSteps(t *testing.T) {
	tests := []struct {
		name    string
		pattern domain.RecurrencePattern
		want    []string
	}{
		{
			name: "bi-weekly",
			pattern: domain.RecurrencePattern{
				Type:      domain.PatternBiWeekly,
				DayOfWeek: weekday(domain.WeekdayWednesday),
				StartDate: date(t, "2024-01-01"),
			},
			want: []string{"2024-01-03", "2024-01-17", "2024-01-31", "2024-02-14"},
		},
		{
			name: "custom every three weeks",
			pattern: domain.RecurrencePattern{
				Type:          domain.PatternCustom,
				DayOfWeek:     weekday(domain.WeekdaySaturday),
				IntervalWeeks: intPtr(3),
				StartDate:     date(t, "2024-01-01"),
			},
			want: []string{"2024-01-06", "2024-01-27", "2024-02-17"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDates(ComputeDates(tt.pattern, date(t, "2024-01-01"), date(t, "2024-02-20")))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeDates_PhaseAnchoredOnPatternStart(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:      domain.PatternBiWeekly,
		DayOfWeek: weekday(domain.WeekdaySunday),
		StartDate: date(t, "2024-01-01"),
	}

	// 2024-01-07 is the anchor; a window starting on 2024-01-14 must not shift the cadence.
	got := FormatDates(ComputeDates(p, date(t, "2024-01-14"), date(t, "2024-02-10")))
	assert.Equal(t, []string{"2024-01-21", "2024-02-04"}, got)
}

func TestComputeDates_MissingRequiredFieldsYieldsNothing(t *testing.T) {
	tests := []struct {
		name    string
		pattern domain.RecurrencePattern
	}{
		{"weekly without day", domain.RecurrencePattern{Type: domain.PatternWeekly}},
		{"monthly without week", domain.RecurrencePattern{Type: domain.PatternMonthly, DayOfWeek: weekday(domain.WeekdaySunday)}},
		{"custom without interval", domain.RecurrencePattern{Type: domain.PatternCustom, DayOfWeek: weekday(domain.WeekdaySunday)}},
		{"custom with zero interval", domain.RecurrencePattern{Type: domain.PatternCustom, DayOfWeek: weekday(domain.WeekdaySunday), IntervalWeeks: intPtr(0)}},
		{"unknown type", domain.RecurrencePattern{Type: "yearly", DayOfWeek: weekday(domain.WeekdaySunday)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pattern.StartDate = date(t, "2024-01-01")
			assert.Empty(t, ComputeDates(tt.pattern, date(t, "2024-01-01"), date(t, "2024-12-31")))
		})
	}
}

func TestComputeDates_WindowOutsidePatternBounds(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:      domain.PatternWeekly,
		DayOfWeek: weekday(domain.WeekdaySunday),
		StartDate: date(t, "2024-03-01"),
		EndDate:   datePtr(t, "2024-03-31"),
	}

	assert.Empty(t, ComputeDates(p, date(t, "2024-01-01"), date(t, "2024-02-28")))
	assert.Empty(t, ComputeDates(p, date(t, "2024-04-01"), date(t, "2024-05-01")))
	assert.Equal(t,
		[]string{"2024-03-03", "2024-03-10", "2024-03-17", "2024-03-24", "2024-03-31"},
		FormatDates(ComputeDates(p, date(t, "2024-01-01"), date(t, "2024-12-31"))))
}

func TestComputeDates_ResumesAfterWatermark(t *testing.T) {
	patterns := []domain.RecurrencePattern{
		{Type: domain.PatternWeekly, DayOfWeek: weekday(domain.WeekdaySunday)},
		{Type: domain.PatternBiWeekly, DayOfWeek: weekday(domain.WeekdayThursday)},
		{Type: domain.PatternMonthly, DayOfWeek: weekday(domain.WeekdayFriday), WeekOfMonth: intPtr(1)},
		{Type: domain.PatternCustom, DayOfWeek: weekday(domain.WeekdayMonday), IntervalWeeks: intPtr(4)},
	}
	start, end := date(t, "2024-01-01"), date(t, "2024-12-31")

	for _, p := range patterns {
		t.Run(string(p.Type), func(t *testing.T) {
			p.StartDate = date(t, "2023-11-15")
			full := ComputeDates(p, start, end)
			require.NotEmpty(t, full)

			for i, watermark := range full {
				resumed := p
				wm := watermark
				resumed.LastGeneratedDate = &wm
				assert.Equal(t, FormatDates(full[i+1:]), FormatDates(ComputeDates(resumed, start, end)),
					"watermark %s", watermark.Format(domain.DateLayout))
			}

			// A watermark between occurrences resumes at the next one.
			between := full[0].Add(day)
			resumed := p
			resumed.LastGeneratedDate = &between
			assert.Equal(t, FormatDates(full[1:]), FormatDates(ComputeDates(resumed, start, end)))
		})
	}
}

func TestComputeDates_WeekdayAndSpacingProperties(t *testing.T) {
	start, end := date(t, "2023-01-01"), date(t, "2025-12-31")

	for d := domain.WeekdaySunday; d <= domain.WeekdaySaturday; d++ {
		p := domain.RecurrencePattern{Type: domain.PatternWeekly, DayOfWeek: weekday(d), StartDate: start}
		dates := ComputeDates(p, start, end)
		require.NotEmpty(t, dates)
		for i, got := range dates {
			assert.Equal(t, time.Weekday(d), got.Weekday())
			if i > 0 {
				assert.Equal(t, 7*day, got.Sub(dates[i-1]))
			}
		}
	}

	for week := 1; week <= 5; week++ {
		for d := domain.WeekdaySunday; d <= domain.WeekdaySaturday; d++ {
			p := domain.RecurrencePattern{Type: domain.PatternMonthly, DayOfWeek: weekday(d), WeekOfMonth: intPtr(week), StartDate: start}
			dates := ComputeDates(p, start, end)
			seen := make(map[string]bool)
			for _, got := range dates {
				assert.Equal(t, time.Weekday(d), got.Weekday())
				assert.Equal(t, week, (got.Day()-1)/7+1, "occurrence index for %s", got.Format(domain.DateLayout))
				month := got.Format("2006-01")
				assert.False(t, seen[month], "two dates in %s", month)
				seen[month] = true
			}
			if week <= 4 {
				assert.Len(t, dates, 36)
			}
		}
	}
}

func TestRRule(t *testing.T) {
	p := domain.RecurrencePattern{
		Type:        domain.PatternMonthly,
		DayOfWeek:   weekday(domain.WeekdaySunday),
		WeekOfMonth: intPtr(2),
		StartDate:   date(t, "2024-01-01"),
	}
	rule, ok := RRule(p)
	require.True(t, ok)
	assert.Contains(t, rule, "FREQ=MONTHLY")
	assert.Contains(t, rule, "BYDAY=+2SU")

	_, ok = RRule(domain.RecurrencePattern{Type: domain.PatternMonthly})
	assert.False(t, ok)
}

func TestFirstOnOrAfter(t *testing.T) {
	assert.Equal(t, date(t, "2024-01-07"), FirstOnOrAfter(date(t, "2024-01-01"), domain.WeekdaySunday))
	assert.Equal(t, date(t, "2024-01-07"), FirstOnOrAfter(date(t, "2024-01-07"), domain.WeekdaySunday))
	assert.Equal(t, date(t, "2024-01-01"), FirstOnOrAfter(date(t, "2024-01-01"), domain.WeekdayMonday))
}

func TestPartition(t *testing.T) {
	toCreate, skipped := Partition(
		[]string{"2024-01-07", "2024-01-14", "2024-01-21"},
		[]string{"2024-01-14", "2023-12-31"},
	)
	assert.Equal(t, []string{"2024-01-07", "2024-01-21"}, toCreate)
	assert.Equal(t, []string{"2024-01-14"}, skipped)

	toCreate, skipped = Partition(nil, []string{"2024-01-14"})
	assert.Empty(t, toCreate)
	assert.Empty(t, skipped)
}
