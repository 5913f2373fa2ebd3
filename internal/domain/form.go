package domain

import (
	"fmt"
	"time"
)

// FormConfig is the active configuration for one public form.
type FormConfig struct {
	ID            int64     `db:"id" json:"id"`
	FormType      string    `db:"form_type" json:"form_type"`
	Title         string    `db:"title" json:"title"`
	TargetTable   string    `db:"target_table" json:"target_table"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	StaticContent string    `db:"static_content" json:"static_content"` // JSON
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FormFieldRow is a field definition as stored.
type FormFieldRow struct {
	ID                   int64   `db:"id" json:"id"`
	ConfigID             int64   `db:"config_id" json:"config_id"`
	Position             int     `db:"position" json:"position"`
	FieldKey             string  `db:"field_key" json:"field_key"`
	FieldType            string  `db:"field_type" json:"field_type"`
	Label                string  `db:"label" json:"label"`
	DBColumn             *string `db:"db_column" json:"db_column,omitempty"`
	TransformationType   *string `db:"transformation_type" json:"transformation_type,omitempty"`
	TransformationConfig string  `db:"transformation_config" json:"transformation_config"` // JSON
	IsNotesField         bool    `db:"is_notes_field" json:"is_notes_field"`
	NotesFormat          string  `db:"notes_format" json:"notes_format"`
}

// SubmissionRuleRow is a submission rule as stored; RuleConfig is JSON.
type SubmissionRuleRow struct {
	ID         int64  `db:"id" json:"id"`
	ConfigID   int64  `db:"config_id" json:"config_id"`
	RuleType   string `db:"rule_type" json:"rule_type"`
	RuleConfig string `db:"rule_config" json:"rule_config"`
	Priority   int    `db:"priority" json:"priority"`
	IsActive   bool   `db:"is_active" json:"is_active"`
}

// Record is a dynamic row keyed by column name.
type Record map[string]any

// ID returns the record's integer id, or 0.
func (r Record) ID() int64 {
	switch v := r["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// String returns the column as a string, or "" when null or absent.
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(r[col])
}
