package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/service"
)

// today is the current calendar date in the configured timezone.
func today() time.Time {
	return domain.CivilDate(time.Now().In(cfg.Timezone))
}

// parseWindow reads a YYYY-MM-DD window; from defaults to today, to to the horizon.
func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	from := today()
	if fromStr != "" {
		d, err := domain.ParseDate(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", fromStr, err)
		}
		from = d
	}
	to := cfg.Horizon(from)
	if toStr != "" {
		d, err := domain.ParseDate(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", toStr, err)
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return from, to, nil
}

func generateCmd() *cobra.Command {
	var (
		patternID int64
		fromStr   string
		toStr     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate services from recurrence patterns",
		Long: `Generate materializes services for active recurrence patterns within a window.
Dates already generated (up to a pattern's watermark) and services that already
exist are skipped, so the command is safe to rerun.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseWindow(fromStr, toStr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if patternID != 0 {
				res, err := a.generation.Generate(cmd.Context(), patternID, from, to)
				if err != nil {
					return err
				}
				printResults(cmd.OutOrStdout(), []*service.GenerationResult{res})
				return nil
			}
			// GenerateAll keeps going past a failing pattern; report what succeeded.
			results, err := a.generation.GenerateAll(cmd.Context(), from, to)
			printResults(cmd.OutOrStdout(), results)
			return err
		},
	}
	cmd.Flags().Int64Var(&patternID, "pattern", 0, "generate a single pattern by id")
	cmd.Flags().StringVar(&fromStr, "from", "", "window start, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&toStr, "to", "", "window end, YYYY-MM-DD (default today plus the horizon)")
	return cmd
}

func printResults(w io.Writer, results []*service.GenerationResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No active patterns")
		return
	}
	for _, res := range results {
		fmt.Fprintf(w, "Pattern %d: %d created, %d skipped\n", res.PatternID, len(res.Created), len(res.Skipped))
		if len(res.Skipped) > 0 {
			fmt.Fprintf(w, "  skipped: %s\n", strings.Join(res.Skipped, ", "))
		}
	}
}

func previewCmd() *cobra.Command {
	var (
		patternType string
		day         string
		week        int
		interval    int
		startStr    string
		endStr      string
		fromStr     string
		toStr       string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the dates a recurrence pattern would produce",
		Example: `  flock preview --type monthly --day sunday --week 2 --start 2024-01-01
  flock preview --type custom --day wednesday --interval 3 --from 2024-01-01 --to 2024-06-30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := domain.RecurrencePattern{Type: domain.PatternType(patternType), IsActive: true}
			if !p.Type.Valid() {
				return fmt.Errorf("unknown pattern type %q", patternType)
			}
			weekday, ok := domain.ParseWeekday(day)
			if !ok {
				return fmt.Errorf("invalid --day %q", day)
			}
			p.DayOfWeek = &weekday
			if cmd.Flags().Changed("week") {
				p.WeekOfMonth = &week
			}
			if cmd.Flags().Changed("interval") {
				p.IntervalWeeks = &interval
			}
			if !p.HasRequiredFields() {
				return fmt.Errorf("pattern type %s is missing required flags", p.Type)
			}

			from, to, err := parseWindow(fromStr, toStr)
			if err != nil {
				return err
			}
			p.StartDate = from
			if startStr != "" {
				if p.StartDate, err = domain.ParseDate(startStr); err != nil {
					return fmt.Errorf("invalid --start %q: %w", startStr, err)
				}
			}
			if endStr != "" {
				end, err := domain.ParseDate(endStr)
				if err != nil {
					return fmt.Errorf("invalid --end %q: %w", endStr, err)
				}
				p.EndDate = &end
			}

			preview := (&service.GenerationService{}).Preview(p, from, to)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pattern: %s\n", preview.Description)
			if preview.RRule != "" {
				fmt.Fprintf(out, "RRULE:   %s\n", preview.RRule)
			}
			if len(preview.Dates) == 0 {
				fmt.Fprintln(out, "No dates in window")
				return nil
			}
			for _, d := range preview.Dates {
				fmt.Fprintln(out, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patternType, "type", "weekly", "pattern type: weekly, biWeekly, monthly or custom")
	cmd.Flags().StringVar(&day, "day", "sunday", "day of week")
	cmd.Flags().IntVar(&week, "week", 1, "week of month, 1-5 (monthly)")
	cmd.Flags().IntVar(&interval, "interval", 1, "interval in weeks (custom)")
	cmd.Flags().StringVar(&startStr, "start", "", "pattern start date (default --from)")
	cmd.Flags().StringVar(&endStr, "end", "", "pattern end date")
	cmd.Flags().StringVar(&fromStr, "from", "", "window start (default today)")
	cmd.Flags().StringVar(&toStr, "to", "", "window end (default today plus the horizon)")
	return cmd
}
