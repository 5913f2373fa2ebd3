package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/flock/internal/blob"
	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/forms"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/storage"
)

const (
	SubmissionCreated = "created"
	SubmissionUpdated = "updated"

	archivePrefix = "submissions/"
)

// SubmitResult is returned to the public form after a successful submission.
type SubmitResult struct {
	Status   string `json:"status"`
	RecordID int64  `json:"recordId"`
}

// FormView is a form configuration with its field list, for rendering clients.
type FormView struct {
	Config domain.FormConfig     `json:"config"`
	Fields []domain.FormFieldRow `json:"fields"`
}

// ArchivedSubmission is the audit copy of one accepted submission.
type ArchivedSubmission struct {
	ID         string         `json:"id"`
	FormType   string         `json:"form_type"`
	ConfigID   int64          `json:"config_id"`
	Status     string         `json:"status"`
	RecordID   int64          `json:"record_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Payload    map[string]any `json:"payload"`
}

// FormService runs public form submissions through the configured pipeline.
type FormService struct {
	storage *storage.Storage
	archive blob.Store
	metrics *metrics.Metrics
	locks   keyedMutex
	now     func() time.Time
}

func NewFormService(s *storage.Storage, archive blob.Store, m *metrics.Metrics) *FormService {
	return &FormService{storage: s, archive: archive, metrics: m, now: time.Now}
}

// LoadForm compiles the active configuration for formType.
func (s *FormService) LoadForm(ctx context.Context, formType string) (*forms.Form, error) {
	cfg, err := s.storage.GetActiveFormConfig(ctx, formType)
	if err != nil {
		return nil, fmt.Errorf("get form config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("form %q: %w", formType, domain.ErrConfigNotFound)
	}

	fields, err := s.storage.ListFormFields(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	rules, err := s.storage.ListSubmissionRules(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("list submission rules: %w", err)
	}
	return compile(*cfg, fields, rules)
}

// Describe returns the active configuration and fields for formType.
func (s *FormService) Describe(ctx context.Context, formType string) (*FormView, error) {
	form, err := s.LoadForm(ctx, formType)
	if err != nil {
		return nil, err
	}
	fields, err := s.storage.ListFormFields(ctx, form.Config.ID)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	return &FormView{Config: form.Config, Fields: fields}, nil
}

func (s *FormService) ListConfigs(ctx context.Context) ([]*domain.FormConfig, error) {
	return s.storage.ListFormConfigs(ctx)
}

// Import validates a definition and stores it as the active configuration
// for its form type.
func (s *FormService) Import(ctx context.Context, def *forms.Definition) (*domain.FormConfig, error) {
	cfg, fields, rules, err := def.Rows()
	if err != nil {
		return nil, err
	}
	if _, err := compile(cfg, fields, rules); err != nil {
		return nil, err
	}
	if err := s.storage.SaveFormConfig(ctx, &cfg, fields, rules); err != nil {
		return nil, fmt.Errorf("save form config: %w", err)
	}
	slog.Info("Imported form configuration", "form_type", cfg.FormType, "config_id", cfg.ID, "fields", len(fields), "rules", len(rules))
	return &cfg, nil
}

// Submit processes a raw submission against the active configuration and
// persists it. With a conditional_save rule the lookup value is required and
// submissions sharing it are serialized.
func (s *FormService) Submit(ctx context.Context, formType string, raw map[string]any) (res *SubmitResult, err error) {
	started := s.now()
	defer func() { s.metrics.Observe(ctx, "form_submit", err == nil, time.Since(started)) }()

	form, err := s.LoadForm(ctx, formType)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	out := form.Process(raw)
	table := form.Config.TargetTable

	var existing domain.Record
	if form.Save != nil {
		if out.LookupValue == "" {
			return nil, fmt.Errorf("form %q: %w: %s", formType, domain.ErrMissingLookupValue, form.Save.LookupField)
		}
		unlock := s.locks.Lock(table + "\x00" + form.LookupColumn() + "\x00" + out.LookupValue)
		defer unlock()

		existing, err = s.storage.FindRecord(ctx, table, form.LookupColumn(), out.LookupValue)
		if err != nil {
			return nil, fmt.Errorf("lookup record: %w", err)
		}
	}

	plan := forms.BuildPlan(out, existing, form.Strategy())
	res, err = s.apply(ctx, table, plan)
	if err != nil {
		return nil, err
	}

	s.metrics.FormSubmitted(formType, res.Status)
	slog.Info("Form submitted", "form_type", formType, "status", res.Status, "record_id", res.RecordID)

	s.archiveSubmission(ctx, form.Config, res, raw)
	return res, nil
}

func (s *FormService) apply(ctx context.Context, table string, plan forms.Plan) (*SubmitResult, error) {
	switch plan.Action {
	case forms.ActionUpdate:
		if err := s.storage.UpdateRecord(ctx, table, plan.ID, plan.Values); err != nil {
			return nil, fmt.Errorf("update record: %w", err)
		}
		return &SubmitResult{Status: SubmissionUpdated, RecordID: plan.ID}, nil
	case forms.ActionReplace:
		if err := s.storage.ReplaceRecord(ctx, table, plan.ID, plan.Values); err != nil {
			return nil, fmt.Errorf("replace record: %w", err)
		}
		return &SubmitResult{Status: SubmissionUpdated, RecordID: plan.ID}, nil
	default:
		id, err := s.storage.InsertRecord(ctx, table, plan.Values)
		if err != nil {
			return nil, fmt.Errorf("insert record: %w", err)
		}
		return &SubmitResult{Status: SubmissionCreated, RecordID: id}, nil
	}
}

// archiveSubmission stores the raw payload for audit. Failures are logged only.
func (s *FormService) archiveSubmission(ctx context.Context, cfg domain.FormConfig, res *SubmitResult, raw map[string]any) {
	if s.archive == nil {
		return
	}
	received := s.now().UTC()
	entry := ArchivedSubmission{
		ID:         uuid.NewString(),
		FormType:   cfg.FormType,
		ConfigID:   cfg.ID,
		Status:     res.Status,
		RecordID:   res.RecordID,
		ReceivedAt: received,
		Payload:    raw,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("Failed to encode submission for archive", "form_type", cfg.FormType, "error", err)
		return
	}
	key := fmt.Sprintf("%s%s/%s/%s.json", archivePrefix, cfg.FormType, received.Format(domain.DateLayout), entry.ID)
	_, err = s.archive.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"form-type": cfg.FormType, "status": res.Status},
	})
	if err != nil {
		slog.Warn("Failed to archive submission", "form_type", cfg.FormType, "key", key, "error", err)
	}
}

// ListArchived lists archived submissions of formType, oldest first.
func (s *FormService) ListArchived(ctx context.Context, formType string) ([]blob.Info, error) {
	if s.archive == nil {
		return nil, nil
	}
	infos, err := s.archive.List(ctx, archivePrefix+formType+"/")
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return infos, nil
}

// Archived reads one archived submission by key.
func (s *FormService) Archived(ctx context.Context, key string) (*ArchivedSubmission, error) {
	if s.archive == nil || !strings.HasPrefix(key, archivePrefix) {
		return nil, fmt.Errorf("archive %s: %w", key, domain.ErrNotFound)
	}
	_, rc, err := s.archive.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("archive %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	var entry ArchivedSubmission
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return &entry, nil
}

func compile(cfg domain.FormConfig, fields []domain.FormFieldRow, rules []domain.SubmissionRuleRow) (*forms.Form, error) {
	columns, ok := storage.RecordColumns(cfg.TargetTable)
	if !ok {
		return nil, fmt.Errorf("form %s: %w: unknown target table %q", cfg.FormType, domain.ErrInvalidInput, cfg.TargetTable)
	}
	return forms.Compile(cfg, fields, rules, columns)
}
