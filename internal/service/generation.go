package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/recurrence"
	"github.com/tazhate/flock/internal/storage"
)

// ServicePublisher pushes newly created services to an external calendar.
type ServicePublisher interface {
	IsConfigured() bool
	PublishServices(ctx context.Context, services []*domain.Service) error
}

// GenerationResult reports one generator run over a pattern.
type GenerationResult struct {
	PatternID int64    `json:"pattern_id"`
	Dates     []string `json:"dates"`
	Created   []int64  `json:"created"`
	Skipped   []string `json:"skipped"`
}

// PatternPreview lists the dates a pattern would produce without persisting them.
type PatternPreview struct {
	Description string   `json:"description"`
	RRule       string   `json:"rrule,omitempty"`
	Dates       []string `json:"dates"`
}

// GenerationService materializes services from recurring patterns.
type GenerationService struct {
	storage   *storage.Storage
	publisher ServicePublisher
	metrics   *metrics.Metrics
	locks     keyedMutex
}

func NewGenerationService(s *storage.Storage, m *metrics.Metrics) *GenerationService {
	return &GenerationService{storage: s, metrics: m}
}

// SetPublisher sets the calendar that receives created services.
func (s *GenerationService) SetPublisher(p ServicePublisher) {
	s.publisher = p
}

// CreateTemplate validates and stores a service template.
func (s *GenerationService) CreateTemplate(ctx context.Context, t *domain.ServiceTemplate) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: template name is required", domain.ErrInvalidInput)
	}
	if t.DefaultTime != "" {
		if _, err := time.Parse("15:04", t.DefaultTime); err != nil {
			return fmt.Errorf("%w: default time must be HH:MM", domain.ErrInvalidInput)
		}
	}
	if err := s.storage.CreateTemplate(ctx, t); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (s *GenerationService) ListTemplates(ctx context.Context) ([]*domain.ServiceTemplate, error) {
	return s.storage.ListTemplates(ctx)
}

// CreatePattern validates and stores a recurring pattern for an existing template.
func (s *GenerationService) CreatePattern(ctx context.Context, p *domain.RecurrencePattern) error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown pattern type %q", domain.ErrInvalidInput, p.Type)
	}
	if !p.HasRequiredFields() {
		return fmt.Errorf("%w: %s pattern is missing required fields", domain.ErrInvalidInput, p.Type)
	}
	if p.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", domain.ErrInvalidInput)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", domain.ErrInvalidInput)
	}

	tmpl, err := s.storage.GetTemplate(ctx, p.TemplateID)
	if err != nil {
		return fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return fmt.Errorf("template %d: %w", p.TemplateID, domain.ErrNotFound)
	}

	if err := s.storage.CreatePattern(ctx, p); err != nil {
		return fmt.Errorf("create pattern: %w", err)
	}
	return nil
}

func (s *GenerationService) GetPattern(ctx context.Context, id int64) (*domain.RecurrencePattern, error) {
	p, err := s.storage.GetPattern(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("pattern %d: %w", id, domain.ErrConfigNotFound)
	}
	return p, nil
}

func (s *GenerationService) ListPatterns(ctx context.Context) ([]*domain.RecurrencePattern, error) {
	return s.storage.ListPatterns(ctx, false)
}

// SetPatternActive pauses or resumes generation for a pattern.
func (s *GenerationService) SetPatternActive(ctx context.Context, id int64, active bool) error {
	if _, err := s.GetPattern(ctx, id); err != nil {
		return err
	}
	return s.storage.SetPatternActive(ctx, id, active)
}

// Generate materializes the services a pattern implies within [from, to].
// Dates that already have a service for the template, including ones inserted
// concurrently by another writer, are reported as skipped. The pattern's
// watermark advances to the last computed date.
func (s *GenerationService) Generate(ctx context.Context, patternID int64, from, to time.Time) (res *GenerationResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(ctx, "generate", err == nil, time.Since(started)) }()

	pattern, err := s.GetPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	// Patterns sharing a template share its dates, so serialize on the template.
	unlock := s.locks.Lock(strconv.FormatInt(pattern.TemplateID, 10))
	defer unlock()

	// Reload under the lock: a run that held it may have moved the watermark.
	if pattern, err = s.GetPattern(ctx, patternID); err != nil {
		return nil, err
	}
	tmpl, err := s.storage.GetTemplate(ctx, pattern.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %d: %w", pattern.TemplateID, domain.ErrConfigNotFound)
	}

	dates := recurrence.FormatDates(recurrence.ComputeDates(*pattern, from, to))
	res = &GenerationResult{PatternID: patternID, Dates: dates, Created: []int64{}, Skipped: []string{}}
	if len(dates) == 0 {
		return res, nil
	}

	existing, err := s.storage.ExistingServiceDates(ctx, tmpl.ID, dates)
	if err != nil {
		return nil, fmt.Errorf("list existing services: %w", err)
	}
	toCreate, skipped := recurrence.Partition(dates, existing)
	res.Skipped = append(res.Skipped, skipped...)

	var created []*domain.Service
	for _, date := range toCreate {
		svc := &domain.Service{
			TemplateID:  tmpl.ID,
			Name:        tmpl.Name,
			ServiceDate: date,
			StartTime:   tmpl.DefaultTime,
			Location:    tmpl.Location,
		}
		ok, err := s.storage.CreateServiceIfAbsent(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("create service on %s: %w", date, err)
		}
		if !ok {
			res.Skipped = append(res.Skipped, date)
			continue
		}
		res.Created = append(res.Created, svc.ID)
		created = append(created, svc)
	}
	sort.Strings(res.Skipped)

	if err := s.storage.AdvanceWatermark(ctx, patternID, dates[len(dates)-1]); err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}

	s.metrics.ServicesGenerated(len(res.Created), len(res.Skipped))
	slog.Info("Generated services",
		"pattern_id", patternID,
		"template", tmpl.Name,
		"created", len(res.Created),
		"skipped", len(res.Skipped),
	)

	s.publish(ctx, created)
	return res, nil
}

// GenerateAll runs Generate for every active pattern. A failing pattern is
// logged and does not stop the others; the joined errors are returned.
func (s *GenerationService) GenerateAll(ctx context.Context, from, to time.Time) ([]*GenerationResult, error) {
	patterns, err := s.storage.ListPatterns(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	var (
		results []*GenerationResult
		errs    []error
	)
	for _, p := range patterns {
		res, err := s.Generate(ctx, p.ID, from, to)
		if err != nil {
			slog.Error("Pattern generation failed", "pattern_id", p.ID, "error", err)
			errs = append(errs, fmt.Errorf("pattern %d: %w", p.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Preview lists the dates the pattern would produce within [from, to].
func (s *GenerationService) Preview(p domain.RecurrencePattern, from, to time.Time) *PatternPreview {
	rule, _ := recurrence.RRule(p)
	return &PatternPreview{
		Description: p.Describe(),
		RRule:       rule,
		Dates:       recurrence.FormatDates(recurrence.ComputeDates(p, from, to)),
	}
}

// PreviewPattern previews a stored pattern, honouring its watermark.
func (s *GenerationService) PreviewPattern(ctx context.Context, id int64, from, to time.Time) (*PatternPreview, error) {
	p, err := s.GetPattern(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Preview(*p, from, to), nil
}

func (s *GenerationService) publish(ctx context.Context, services []*domain.Service) {
	if len(services) == 0 || s.publisher == nil || !s.publisher.IsConfigured() {
		return
	}
	if err := s.publisher.PublishServices(ctx, services); err != nil {
		slog.Warn("Failed to publish services to calendar", "count", len(services), "error", err)
	}
}
