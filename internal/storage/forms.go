package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tazhate/flock/internal/domain"
)

const formConfigColumns = `id, form_type, title, target_table, is_active, static_content, created_at`

// GetActiveFormConfig returns the newest active configuration for the form type.
func (s *Storage) GetActiveFormConfig(ctx context.Context, formType string) (*domain.FormConfig, error) {
	c := &domain.FormConfig{}
	found, err := s.get(ctx, c,
		`SELECT `+formConfigColumns+` FROM form_configs WHERE form_type = ? AND is_active = ? ORDER BY id DESC LIMIT 1`,
		formType, true,
	)
	if !found {
		return nil, err
	}
	return c, nil
}

func (s *Storage) ListFormConfigs(ctx context.Context) ([]*domain.FormConfig, error) {
	var out []*domain.FormConfig
	err := s.selectAll(ctx, &out, `SELECT `+formConfigColumns+` FROM form_configs ORDER BY form_type, id DESC`)
	return out, err
}

// ListFormFields returns the configuration's fields in display order.
func (s *Storage) ListFormFields(ctx context.Context, configID int64) ([]domain.FormFieldRow, error) {
	var out []domain.FormFieldRow
	err := s.selectAll(ctx, &out,
		`SELECT id, config_id, position, field_key, field_type, label, db_column, transformation_type,
		 transformation_config, is_notes_field, notes_format
		 FROM form_fields WHERE config_id = ? ORDER BY position, id`,
		configID,
	)
	return out, err
}

// ListSubmissionRules returns every rule of the configuration, active or not.
func (s *Storage) ListSubmissionRules(ctx context.Context, configID int64) ([]domain.SubmissionRuleRow, error) {
	var out []domain.SubmissionRuleRow
	err := s.selectAll(ctx, &out,
		`SELECT id, config_id, rule_type, rule_config, priority, is_active
		 FROM submission_rules WHERE config_id = ? ORDER BY priority, id`,
		configID,
	)
	return out, err
}

// SaveFormConfig stores a configuration with its fields and rules in one
// transaction. An active configuration deactivates earlier ones of the same type.
func (s *Storage) SaveFormConfig(ctx context.Context, cfg *domain.FormConfig, fields []domain.FormFieldRow, rules []domain.SubmissionRuleRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if cfg.IsActive {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE form_configs SET is_active = ? WHERE form_type = ?`), false, cfg.FormType); err != nil {
			return fmt.Errorf("deactivate previous: %w", err)
		}
	}

	staticContent := cfg.StaticContent
	if staticContent == "" {
		staticContent = "{}"
	}
	id, err := s.insertReturningID(ctx, tx,
		`INSERT INTO form_configs (form_type, title, target_table, is_active, static_content) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		cfg.FormType, cfg.Title, cfg.TargetTable, cfg.IsActive, staticContent,
	)
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	for i := range fields {
		f := &fields[i]
		f.ConfigID = id
		f.ID, err = s.insertReturningID(ctx, tx,
			`INSERT INTO form_fields (config_id, position, field_key, field_type, label, db_column, transformation_type,
			 transformation_config, is_notes_field, notes_format)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			id, f.Position, f.FieldKey, f.FieldType, f.Label, f.DBColumn, f.TransformationType,
			orDefault(f.TransformationConfig, "{}"), f.IsNotesField, f.NotesFormat,
		)
		if err != nil {
			return fmt.Errorf("insert field %s: %w", f.FieldKey, err)
		}
	}

	for i := range rules {
		r := &rules[i]
		r.ConfigID = id
		r.ID, err = s.insertReturningID(ctx, tx,
			`INSERT INTO submission_rules (config_id, rule_type, rule_config, priority, is_active) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			id, r.RuleType, orDefault(r.RuleConfig, "{}"), r.Priority, r.IsActive,
		)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.RuleType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	cfg.ID = id
	cfg.StaticContent = staticContent
	cfg.CreatedAt = time.Now()
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
