package forms

import (
	"fmt"
	"strings"

	"github.com/tazhate/flock/internal/domain"
)

const (
	NotesColumn  = "notes"
	StatusColumn = "status"

	notesSeparator = " | "
)

// Form is a compiled form configuration ready to process submissions.
type Form struct {
	Config domain.FormConfig
	Fields []Field
	Rules  []Rule
	Save   *ConditionalSave // last conditional_save by priority, nil if none
}

// Compile validates a stored configuration against the target table's
// columns. Unknown columns, malformed transforms and malformed rules are
// rejected here rather than at submission time.
func Compile(cfg domain.FormConfig, fieldRows []domain.FormFieldRow, ruleRows []domain.SubmissionRuleRow, columns []string) (*Form, error) {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}

	form := &Form{Config: cfg}
	for _, row := range fieldRows {
		f, err := CompileField(row, cols)
		if err != nil {
			return nil, fmt.Errorf("form %s: %w", cfg.FormType, err)
		}
		form.Fields = append(form.Fields, f)
	}

	rules, err := ParseRules(ruleRows)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", cfg.FormType, err)
	}
	form.Rules = rules

	for _, r := range rules {
		switch r := r.(type) {
		case StatusProgression:
			if !cols[StatusColumn] {
				return nil, fmt.Errorf("form %s: %w: status rule on table without %s column", cfg.FormType, domain.ErrInvalidRule, StatusColumn)
			}
		case ConditionalSave:
			save := r
			form.Save = &save
		}
	}
	if form.Save != nil {
		if col := form.LookupColumn(); !cols[col] {
			return nil, fmt.Errorf("form %s: %w: lookup column %q not in target", cfg.FormType, domain.ErrInvalidRule, col)
		}
	}
	return form, nil
}

// Strategy returns the configured merge strategy, insert_only without a
// conditional_save rule.
func (f *Form) Strategy() MergeStrategy {
	if f.Save == nil {
		return StrategyInsertOnly
	}
	return f.Save.MergeStrategy
}

// LookupColumn is the column compared against the lookup value: the column
// the lookup field maps to, or the field key itself when unmapped.
func (f *Form) LookupColumn() string {
	if f.Save == nil {
		return ""
	}
	for _, field := range f.Fields {
		if field.Key == f.Save.LookupField && field.Column != "" {
			if _, ok := field.Transform.(Direct); ok {
				return field.Column
			}
		}
	}
	return f.Save.LookupField
}

// Result is the record-shaped output of one submission.
type Result struct {
	Values     domain.Record
	NotesParts []string

	// LookupValue is the trimmed lookup field value; empty when absent.
	LookupValue string

	progressions []StatusProgression
	combined     map[string]bool
}

// Notes joins the rendered notes fragments.
func (r *Result) Notes() string {
	return strings.Join(r.NotesParts, notesSeparator)
}

// Status returns the status to persist. The running status starts from the
// mapped status field, or existing when the form maps none, and each fired
// progression rule advances it in priority order.
func (r *Result) Status(existing string) string {
	status := existing
	if v, ok := r.Values[StatusColumn].(string); ok && v != "" {
		status = v
	}
	for _, p := range r.progressions {
		status = p.Next(status)
	}
	return status
}

// Output assembles the full column set for a write: mapped values, the
// aggregated notes and the resolved status.
func (r *Result) Output(existingStatus string) domain.Record {
	out := make(domain.Record, len(r.Values)+2)
	for k, v := range r.Values {
		out[k] = v
	}
	if notes := r.Notes(); notes != "" {
		out[NotesColumn] = notes
	}
	if status := r.Status(existingStatus); status != "" {
		out[StatusColumn] = status
	}
	return out
}

// Process applies field transforms in definition order and evaluates the
// status progression triggers. It is pure: identical input yields identical output.
func (f *Form) Process(raw map[string]any) *Result {
	res := &Result{
		Values:   make(domain.Record),
		combined: make(map[string]bool),
	}
	for _, field := range f.Fields {
		if field.Transform == nil || isEmpty(raw[field.Key]) {
			continue
		}
		field.Transform.apply(field, raw, res)
	}

	for _, r := range f.Rules {
		if p, ok := r.(StatusProgression); ok && p.Triggered(raw) {
			res.progressions = append(res.progressions, p)
		}
	}

	if f.Save != nil {
		res.LookupValue = strings.TrimSpace(stringify(raw[f.Save.LookupField]))
	}
	return res
}
