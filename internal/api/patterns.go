package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tazhate/flock/internal/domain"
)

// PatternRequest is the wire form of a recurrence pattern.
type PatternRequest struct {
	TemplateID    int64           `json:"template_id"`
	Type          string          `json:"type"`
	DayOfWeek     *domain.Weekday `json:"day_of_week"`
	WeekOfMonth   *int            `json:"week_of_month"`
	IntervalWeeks *int            `json:"interval_weeks"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Inactive      bool            `json:"inactive"`
}

func (req *PatternRequest) pattern() (*domain.RecurrencePattern, error) {
	p := &domain.RecurrencePattern{
		TemplateID:    req.TemplateID,
		Type:          domain.PatternType(req.Type),
		DayOfWeek:     req.DayOfWeek,
		WeekOfMonth:   req.WeekOfMonth,
		IntervalWeeks: req.IntervalWeeks,
		IsActive:      !req.Inactive,
	}
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	p.StartDate = start
	if req.EndDate != "" {
		end, err := domain.ParseDate(req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", domain.ErrInvalidInput)
		}
		p.EndDate = &end
	}
	return p, nil
}

type PatternResponse struct {
	ID                int64           `json:"id"`
	TemplateID        int64           `json:"template_id"`
	Type              string          `json:"type"`
	Description       string          `json:"description"`
	DayOfWeek         *domain.Weekday `json:"day_of_week,omitempty"`
	WeekOfMonth       *int            `json:"week_of_month,omitempty"`
	IntervalWeeks     *int            `json:"interval_weeks,omitempty"`
	StartDate         string          `json:"start_date"`
	EndDate           *string         `json:"end_date,omitempty"`
	LastGeneratedDate *string         `json:"last_generated_date,omitempty"`
	IsActive          bool            `json:"is_active"`
}

func patternResponse(p *domain.RecurrencePattern) PatternResponse {
	return PatternResponse{
		ID:                p.ID,
		TemplateID:        p.TemplateID,
		Type:              string(p.Type),
		Description:       p.Describe(),
		DayOfWeek:         p.DayOfWeek,
		WeekOfMonth:       p.WeekOfMonth,
		IntervalWeeks:     p.IntervalWeeks,
		StartDate:         p.StartDate.Format(domain.DateLayout),
		EndDate:           formatDate(p.EndDate),
		LastGeneratedDate: formatDate(p.LastGeneratedDate),
		IsActive:          p.IsActive,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateLayout)
	return &s
}

// GET /api/templates
func (s *Server) apiTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Generation.ListTemplates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, list)
}

// POST /api/templates
func (s *Server) apiCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.ServiceTemplate
	if err := decodeJSON(w, r, &tpl); err != nil {
		writeError(w, r, err)
		return
	}
	tpl.ID = 0
	if err := s.svc.Generation.CreateTemplate(r.Context(), &tpl); err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, tpl)
}

// GET /api/patterns
func (s *Server) apiPatterns(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Generation.ListPatterns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]PatternResponse, 0, len(list))
	for _, p := range list {
		out = append(out, patternResponse(p))
	}
	jsonResponse(w, out)
}

// POST /api/patterns
func (s *Server) apiCreatePattern(w http.ResponseWriter, r *http.Request) {
	var req PatternRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.pattern()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Generation.CreatePattern(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, patternResponse(p))
}

// GET /api/patterns/{id}
func (s *Server) apiPattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Generation.GetPattern(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, patternResponse(p))
}

// PUT /api/patterns/{id}/active
func (s *Server) apiPatternActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Generation.SetPatternActive(r.Context(), pathID(r), req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// GET /api/patterns/{id}/preview?from=&to=
func (s *Server) apiPreviewPattern(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	preview, err := s.svc.Generation.PreviewPattern(r.Context(), pathID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, preview)
}

// POST /api/patterns/preview?from=&to= - previews an unsaved pattern
func (s *Server) apiPreviewDraft(w http.ResponseWriter, r *http.Request) {
	var req PatternRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.pattern()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !p.Type.Valid() || !p.HasRequiredFields() {
		writeError(w, r, fmt.Errorf("%w: incomplete %q pattern", domain.ErrInvalidInput, p.Type))
		return
	}
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, s.svc.Generation.Preview(*p, from, to))
}

// POST /api/patterns/{id}/generate?from=&to=
func (s *Server) apiGenerate(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Generation.Generate(r.Context(), pathID(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, res)
}

// POST /api/patterns/generate?from=&to= - every active pattern
func (s *Server) apiGenerateAll(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := s.svc.Generation.GenerateAll(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, results)
}
