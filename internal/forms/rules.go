package forms

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tazhate/flock/internal/domain"
)

const (
	RuleStatusProgression = "status_progression"
	RuleValidation        = "validation"
	RuleConditionalSave   = "conditional_save"
)

// MergeStrategy decides how a submission meets an existing record.
type MergeStrategy string

const (
	StrategyMerge      MergeStrategy = "merge"
	StrategyReplace    MergeStrategy = "replace"
	StrategyInsertOnly MergeStrategy = "insert_only"
)

func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyMerge, StrategyReplace, StrategyInsertOnly:
		return true
	}
	return false
}

// Rule is one parsed submission rule. Implementations: StatusProgression,
// ConditionalSave, Validation.
type Rule interface {
	rulePriority() int
}

type StatusCondition struct {
	CurrentStatus string `json:"currentStatus"`
	NewStatus     string `json:"newStatus"`
}

// StatusProgression moves the record's status when TriggerField carries TriggerValue.
type StatusProgression struct {
	Priority     int               `json:"-"`
	TriggerField string            `json:"triggerField"`
	TriggerValue string            `json:"triggerValue"`
	Conditions   []StatusCondition `json:"conditions"`
	Default      string            `json:"default"`
}

// ConditionalSave looks up an existing record by LookupField before writing.
type ConditionalSave struct {
	Priority      int           `json:"-"`
	LookupField   string        `json:"lookupField"`
	MergeStrategy MergeStrategy `json:"mergeStrategy"`
}

// Validation rules are stored and exposed but not enforced.
type Validation struct {
	Priority int
	Config   json.RawMessage
}

func (r StatusProgression) rulePriority() int { return r.Priority }
func (r ConditionalSave) rulePriority() int   { return r.Priority }
func (r Validation) rulePriority() int        { return r.Priority }

// Triggered reports whether the submission fires the rule. Only a string
// value equal to TriggerValue counts.
func (r StatusProgression) Triggered(raw map[string]any) bool {
	v, ok := raw[r.TriggerField].(string)
	return ok && v == r.TriggerValue
}

// Next returns the status after applying the rule to current.
func (r StatusProgression) Next(current string) string {
	for _, c := range r.Conditions {
		if c.CurrentStatus == current {
			return c.NewStatus
		}
	}
	if r.Default != "" {
		return r.Default
	}
	return current
}

// ParseRule decodes a stored rule row into its typed form.
func ParseRule(row domain.SubmissionRuleRow) (Rule, error) {
	cfg := []byte(orEmptyObject(row.RuleConfig))

	switch row.RuleType {
	case RuleStatusProgression:
		var r StatusProgression
		if err := json.Unmarshal(cfg, &r); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", domain.ErrInvalidRule, row.ID, err)
		}
		if r.TriggerField == "" {
			return nil, fmt.Errorf("%w: rule %d: triggerField is required", domain.ErrInvalidRule, row.ID)
		}
		r.Priority = row.Priority
		return r, nil

	case RuleConditionalSave:
		var r ConditionalSave
		if err := json.Unmarshal(cfg, &r); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", domain.ErrInvalidRule, row.ID, err)
		}
		if r.LookupField == "" {
			return nil, fmt.Errorf("%w: rule %d: lookupField is required", domain.ErrInvalidRule, row.ID)
		}
		if r.MergeStrategy == "" {
			r.MergeStrategy = StrategyMerge
		}
		if !r.MergeStrategy.Valid() {
			return nil, fmt.Errorf("%w: rule %d: unknown merge strategy %q", domain.ErrInvalidRule, row.ID, r.MergeStrategy)
		}
		r.Priority = row.Priority
		return r, nil

	case RuleValidation:
		if !json.Valid(cfg) {
			return nil, fmt.Errorf("%w: rule %d: config is not valid JSON", domain.ErrInvalidRule, row.ID)
		}
		return Validation{Priority: row.Priority, Config: json.RawMessage(cfg)}, nil
	}
	return nil, fmt.Errorf("%w: rule %d: unknown type %q", domain.ErrInvalidRule, row.ID, row.RuleType)
}

// ParseRules parses active rows and orders them by ascending priority.
// Inactive rows are ignored.
func ParseRules(rows []domain.SubmissionRuleRow) ([]Rule, error) {
	active := make([]domain.SubmissionRuleRow, 0, len(rows))
	for _, row := range rows {
		if row.IsActive {
			active = append(active, row)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })

	rules := make([]Rule, 0, len(active))
	for _, row := range active {
		r, err := ParseRule(row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
