package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tazhate/flock/internal/domain"
)

// === Templates ===

func (s *Storage) CreateTemplate(ctx context.Context, t *domain.ServiceTemplate) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO service_templates (name, default_time, location) VALUES (?, ?, ?) RETURNING id`,
		t.Name, t.DefaultTime, t.Location,
	)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetTemplate(ctx context.Context, id int64) (*domain.ServiceTemplate, error) {
	t := &domain.ServiceTemplate{}
	found, err := s.get(ctx, t, `SELECT id, name, default_time, location, created_at FROM service_templates WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return t, nil
}

func (s *Storage) ListTemplates(ctx context.Context) ([]*domain.ServiceTemplate, error) {
	var templates []*domain.ServiceTemplate
	err := s.selectAll(ctx, &templates, `SELECT id, name, default_time, location, created_at FROM service_templates ORDER BY id`)
	return templates, err
}

// === Patterns ===

type patternRow struct {
	ID                int64          `db:"id"`
	TemplateID        int64          `db:"template_id"`
	Type              string         `db:"pattern_type"`
	DayOfWeek         sql.NullInt64  `db:"day_of_week"`
	WeekOfMonth       sql.NullInt64  `db:"week_of_month"`
	IntervalWeeks     sql.NullInt64  `db:"interval_weeks"`
	StartDate         string         `db:"start_date"`
	EndDate           sql.NullString `db:"end_date"`
	LastGeneratedDate sql.NullString `db:"last_generated_date"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
}

const patternColumns = `id, template_id, pattern_type, day_of_week, week_of_month, interval_weeks,
	start_date, end_date, last_generated_date, is_active, created_at`

func (r *patternRow) toDomain() (*domain.RecurrencePattern, error) {
	p := &domain.RecurrencePattern{
		ID:         r.ID,
		TemplateID: r.TemplateID,
		Type:       domain.PatternType(r.Type),
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
	}
	if r.DayOfWeek.Valid {
		d := domain.Weekday(r.DayOfWeek.Int64)
		p.DayOfWeek = &d
	}
	if r.WeekOfMonth.Valid {
		n := int(r.WeekOfMonth.Int64)
		p.WeekOfMonth = &n
	}
	if r.IntervalWeeks.Valid {
		n := int(r.IntervalWeeks.Int64)
		p.IntervalWeeks = &n
	}

	var err error
	if p.StartDate, err = domain.ParseDate(r.StartDate); err != nil {
		return nil, fmt.Errorf("pattern %d start_date: %w", r.ID, err)
	}
	if p.EndDate, err = parseNullDate(r.EndDate); err != nil {
		return nil, fmt.Errorf("pattern %d end_date: %w", r.ID, err)
	}
	if p.LastGeneratedDate, err = parseNullDate(r.LastGeneratedDate); err != nil {
		return nil, fmt.Errorf("pattern %d last_generated_date: %w", r.ID, err)
	}
	return p, nil
}

func parseNullDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateLayout)
	return &s
}

func nullInt(p *int) *int64 {
	if p == nil {
		return nil
	}
	n := int64(*p)
	return &n
}

func (s *Storage) CreatePattern(ctx context.Context, p *domain.RecurrencePattern) error {
	var day *int64
	if p.DayOfWeek != nil {
		d := int64(*p.DayOfWeek)
		day = &d
	}
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO recurring_patterns (template_id, pattern_type, day_of_week, week_of_month, interval_weeks, start_date, end_date, last_generated_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.TemplateID, p.Type, day, nullInt(p.WeekOfMonth), nullInt(p.IntervalWeeks),
		p.StartDate.Format(domain.DateLayout), formatNullDate(p.EndDate), formatNullDate(p.LastGeneratedDate), p.IsActive,
	)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetPattern(ctx context.Context, id int64) (*domain.RecurrencePattern, error) {
	var row patternRow
	found, err := s.get(ctx, &row, `SELECT `+patternColumns+` FROM recurring_patterns WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return row.toDomain()
}

func (s *Storage) ListPatterns(ctx context.Context, activeOnly bool) ([]*domain.RecurrencePattern, error) {
	query := `SELECT ` + patternColumns + ` FROM recurring_patterns`
	var args []any
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	var rows []patternRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	patterns := make([]*domain.RecurrencePattern, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// AdvanceWatermark moves the pattern's last generated date forward; it never moves it back.
func (s *Storage) AdvanceWatermark(ctx context.Context, patternID int64, date string) error {
	_, err := s.exec(ctx,
		`UPDATE recurring_patterns SET last_generated_date = ?
		 WHERE id = ? AND (last_generated_date IS NULL OR last_generated_date < ?)`,
		date, patternID, date,
	)
	return err
}

func (s *Storage) SetPatternActive(ctx context.Context, id int64, active bool) error {
	_, err := s.exec(ctx, `UPDATE recurring_patterns SET is_active = ? WHERE id = ?`, active, id)
	return err
}

// === Services ===

const serviceColumns = `id, template_id, name, service_date, start_time, location, created_at`

// CreateServiceIfAbsent inserts the service unless one already exists for the
// same template and date. It reports whether a row was created.
func (s *Storage) CreateServiceIfAbsent(ctx context.Context, svc *domain.Service) (bool, error) {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO services (template_id, name, service_date, start_time, location) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (template_id, service_date) DO NOTHING RETURNING id`,
		svc.TemplateID, svc.Name, svc.ServiceDate, svc.StartTime, svc.Location,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	svc.ID = id
	svc.CreatedAt = time.Now()
	return true, nil
}

func (s *Storage) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	svc := &domain.Service{}
	found, err := s.get(ctx, svc, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return svc, nil
}

// ExistingServiceDates returns which of dates already have a service for the template.
func (s *Storage) ExistingServiceDates(ctx context.Context, templateID int64, dates []string) ([]string, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT service_date FROM services WHERE template_id = ? AND service_date IN (?)`, templateID, dates)
	if err != nil {
		return nil, err
	}
	var existing []string
	err = s.selectAll(ctx, &existing, query, args...)
	return existing, err
}

// ListServices returns services dated within [from, to], inclusive.
func (s *Storage) ListServices(ctx context.Context, from, to string) ([]*domain.Service, error) {
	var services []*domain.Service
	err := s.selectAll(ctx, &services,
		`SELECT `+serviceColumns+` FROM services WHERE service_date >= ? AND service_date <= ? ORDER BY service_date, start_time, id`,
		from, to,
	)
	return services, err
}

func (s *Storage) DeleteService(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM services WHERE id = ?`, id)
	return err
}

// === Rota ===

const rotaSelect = `SELECT r.id, r.service_id, r.member_id, r.duty, r.created_at,
	s.name AS service_name, s.service_date,
	COALESCE(NULLIF(m.full_name, ''), TRIM(COALESCE(m.first_name, '') || ' ' || COALESCE(m.surname, ''))) AS member_name
	FROM rota_assignments r
	JOIN services s ON s.id = r.service_id
	JOIN members m ON m.id = r.member_id`

// CreateRotaAssignment assigns a member to a duty. Assigning the same member
// to the same duty twice is a no-op that returns the existing row.
func (s *Storage) CreateRotaAssignment(ctx context.Context, a *domain.RotaAssignment) error {
	_, err := s.exec(ctx,
		`INSERT INTO rota_assignments (service_id, member_id, duty) VALUES (?, ?, ?)
		 ON CONFLICT (service_id, duty, member_id) DO NOTHING`,
		a.ServiceID, a.MemberID, a.Duty,
	)
	if err != nil {
		return err
	}
	found, err := s.get(ctx, a, rotaSelect+` WHERE r.service_id = ? AND r.duty = ? AND r.member_id = ?`, a.ServiceID, a.Duty, a.MemberID)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteRotaAssignment(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM rota_assignments WHERE id = ?`, id)
	return err
}

func (s *Storage) ListRotaByService(ctx context.Context, serviceID int64) ([]*domain.RotaAssignment, error) {
	var out []*domain.RotaAssignment
	err := s.selectAll(ctx, &out, rotaSelect+` WHERE r.service_id = ? ORDER BY r.duty, member_name`, serviceID)
	return out, err
}

// ListRotaByMember returns the member's duties on services dated from onwards.
func (s *Storage) ListRotaByMember(ctx context.Context, memberID int64, from string) ([]*domain.RotaAssignment, error) {
	var out []*domain.RotaAssignment
	err := s.selectAll(ctx, &out, rotaSelect+` WHERE r.member_id = ? AND s.service_date >= ? ORDER BY s.service_date, r.duty`, memberID, from)
	return out, err
}

// ListRotaOnDate returns every duty on services dated date.
func (s *Storage) ListRotaOnDate(ctx context.Context, date string) ([]*domain.RotaAssignment, error) {
	var out []*domain.RotaAssignment
	err := s.selectAll(ctx, &out, rotaSelect+` WHERE s.service_date = ? ORDER BY r.member_id, r.duty`, date)
	return out, err
}
