package api

import (
	"bytes"
	"log/slog"
	"net/http"
)

// GET /api/services?from=&to=
func (s *Server) apiServices(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	services, err := s.svc.Rota.ListServices(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, services)
}

// GET /api/services.ics?from=&to= - iCalendar feed
func (s *Server) apiServicesFeed(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Render first so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := s.svc.Calendar.WriteFeed(r.Context(), &buf, from, to); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="services.ics"`)
	w.Write(buf.Bytes())
}

// GET /api/services/{id}
func (s *Server) apiService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.svc.Rota.GetService(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, svc)
}

// DELETE /api/services/{id} - also removes the calendar event
func (s *Server) apiDeleteService(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.svc.Rota.DeleteService(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Calendar.Unpublish(r.Context(), id); err != nil {
		slog.Warn("Failed to remove calendar event", "service_id", id, "error", err)
	}
	jsonResponse(w, nil)
}

// GET /api/services/{id}/rota
func (s *Server) apiServiceRota(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.svc.Rota.GetService(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rota, err := s.svc.Rota.ListForService(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, rota)
}

// POST /api/services/{id}/rota
func (s *Server) apiAssignRota(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID int64  `json:"member_id"`
		Duty     string `json:"duty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Rota.Assign(r.Context(), pathID(r), req.MemberID, req.Duty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, a)
}

// DELETE /api/rota/{id}
func (s *Server) apiUnassignRota(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Rota.Unassign(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// POST /api/calendar/publish?from=&to=
func (s *Server) apiPublishCalendar(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Calendar.IsConfigured() {
		jsonError(w, "CalDAV is not configured", http.StatusServiceUnavailable)
		return
	}
	from, to, err := s.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.svc.Calendar.PublishRange(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, map[string]int{"published": n})
}

// GET /api/calendar/calendars
func (s *Server) apiCalendars(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Calendar.IsConfigured() {
		jsonError(w, "CalDAV is not configured", http.StatusServiceUnavailable)
		return
	}
	cals, err := s.svc.Calendar.DiscoverCalendars(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, cals)
}
