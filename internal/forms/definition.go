package forms

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tazhate/flock/internal/domain"
)

// Definition is the portable shape of a form configuration, as imported from
// YAML files or the admin API.
type Definition struct {
	FormType      string            `yaml:"form_type" json:"form_type"`
	Title         string            `yaml:"title" json:"title"`
	TargetTable   string            `yaml:"target_table" json:"target_table"`
	Inactive      bool              `yaml:"inactive" json:"inactive"`
	StaticContent map[string]any    `yaml:"static_content" json:"static_content"`
	Fields        []FieldDefinition `yaml:"fields" json:"fields"`
	Rules         []RuleDefinition  `yaml:"rules" json:"rules"`
}

type FieldDefinition struct {
	Key             string         `yaml:"key" json:"key"`
	Type            string         `yaml:"type" json:"type"`
	Label           string         `yaml:"label" json:"label"`
	Column          string         `yaml:"column" json:"column"`
	Transform       string         `yaml:"transform" json:"transform"`
	TransformConfig map[string]any `yaml:"transform_config" json:"transform_config"`
	Notes           bool           `yaml:"notes" json:"notes"`
	NotesFormat     string         `yaml:"notes_format" json:"notes_format"`
}

type RuleDefinition struct {
	Type     string         `yaml:"type" json:"type"`
	Priority int            `yaml:"priority" json:"priority"`
	Disabled bool           `yaml:"disabled" json:"disabled"`
	Config   map[string]any `yaml:"config" json:"config"`
}

// ParseDefinition decodes a YAML form definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: decode form definition: %v", domain.ErrInvalidInput, err)
	}
	return &d, nil
}

// Rows converts the definition into storage rows. Field positions follow
// definition order. The rows are not yet validated against a target table;
// run Compile for that.
func (d *Definition) Rows() (domain.FormConfig, []domain.FormFieldRow, []domain.SubmissionRuleRow, error) {
	cfg := domain.FormConfig{
		FormType:    strings.TrimSpace(d.FormType),
		Title:       d.Title,
		TargetTable: strings.TrimSpace(d.TargetTable),
		IsActive:    !d.Inactive,
	}
	if cfg.FormType == "" || cfg.TargetTable == "" {
		return cfg, nil, nil, fmt.Errorf("%w: form_type and target_table are required", domain.ErrInvalidInput)
	}

	static, err := encodeObject(d.StaticContent)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("%w: static_content: %v", domain.ErrInvalidInput, err)
	}
	cfg.StaticContent = static

	fields := make([]domain.FormFieldRow, 0, len(d.Fields))
	for i, f := range d.Fields {
		tc, err := encodeObject(f.TransformConfig)
		if err != nil {
			return cfg, nil, nil, fmt.Errorf("%w: field %s: %v", domain.ErrInvalidField, f.Key, err)
		}
		row := domain.FormFieldRow{
			Position:             i,
			FieldKey:             f.Key,
			FieldType:            f.Type,
			Label:                f.Label,
			TransformationConfig: tc,
			IsNotesField:         f.Notes,
			NotesFormat:          f.NotesFormat,
		}
		if f.Column != "" {
			row.DBColumn = ptr(f.Column)
		}
		if f.Transform != "" {
			row.TransformationType = ptr(f.Transform)
		}
		fields = append(fields, row)
	}

	rules := make([]domain.SubmissionRuleRow, 0, len(d.Rules))
	for _, r := range d.Rules {
		rc, err := encodeObject(r.Config)
		if err != nil {
			return cfg, nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRule, r.Type, err)
		}
		rules = append(rules, domain.SubmissionRuleRow{
			RuleType:   r.Type,
			RuleConfig: rc,
			Priority:   r.Priority,
			IsActive:   !r.Disabled,
		})
	}
	return cfg, fields, rules, nil
}

func encodeObject(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ptr(s string) *string { return &s }
