package api

import (
	"net/http"
	"time"

	"github.com/tazhate/flock/internal/domain"
)

// GET /api/members/{id}/messages
func (s *Server) apiMemberMessages(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.svc.Members.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := s.svc.Messages.ListForMember(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, msgs)
}

// POST /api/members/{id}/messages
func (s *Server) apiSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := s.svc.Messages.Send(r.Context(), userFromContext(r.Context()), pathID(r), req.Subject, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, msg)
}

// PUT /api/messages/{id}/read
func (s *Server) apiMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Messages.MarkRead(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// GET /api/announcements?all=1
func (s *Server) apiAnnouncements(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	list, err := s.svc.Messages.ListAnnouncements(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, list)
}

// POST /api/announcements
func (s *Server) apiCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string     `json:"title"`
		Body        string     `json:"body"`
		PublishedAt *time.Time `json:"published_at"`
		ExpiresAt   *time.Time `json:"expires_at"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a := &domain.Announcement{Title: req.Title, Body: req.Body, ExpiresAt: req.ExpiresAt}
	if req.PublishedAt != nil {
		a.PublishedAt = *req.PublishedAt
	}
	sent, err := s.svc.Messages.Announce(r.Context(), userFromContext(r.Context()), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, map[string]any{"announcement": a, "sent": sent})
}

// DELETE /api/announcements/{id}
func (s *Server) apiDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Messages.DeleteAnnouncement(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// GET /api/prayers?all=1 - closed requests are hidden unless all is set
func (s *Server) apiPrayers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Messages.ListPrayers(r.Context(), r.URL.Query().Get("all") != "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, list)
}

// POST /api/prayers - entered by staff on someone's behalf
func (s *Server) apiCreatePrayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Request   string `json:"request"`
		IsPrivate bool   `json:"is_private"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := &domain.PrayerRequest{Name: req.Name, Email: req.Email, Request: req.Request, IsPrivate: req.IsPrivate}
	if err := s.svc.Messages.SubmitPrayer(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, p)
}

// GET /api/prayers/{id}
func (s *Server) apiPrayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Messages.GetPrayer(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, p)
}

// PUT /api/prayers/{id}
func (s *Server) apiUpdatePrayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := pathID(r)
	if err := s.svc.Messages.UpdatePrayer(r.Context(), id, domain.PrayerStatus(req.Status), req.Notes); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Messages.GetPrayer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, p)
}
