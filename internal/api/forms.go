package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/forms"
	"github.com/tazhate/flock/internal/service"
)

// GET /api/forms/{formType} - public form layout
func (s *Server) apiDescribeForm(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Forms.Describe(r.Context(), mux.Vars(r)["formType"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, view)
}

// POST /api/forms/{formType}/submit - public submission
func (s *Server) apiSubmitForm(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeJSON(w, r, &raw); err != nil {
		writeError(w, r, err)
		return
	}
	if raw == nil {
		writeError(w, r, fmt.Errorf("%w: submission must be a JSON object", domain.ErrInvalidInput))
		return
	}
	res, err := s.svc.Forms.Submit(r.Context(), mux.Vars(r)["formType"], raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Status == service.SubmissionCreated {
		status = http.StatusCreated
	}
	jsonStatus(w, status, res)
}

// GET /api/forms/configs
func (s *Server) apiFormConfigs(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Forms.ListConfigs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, list)
}

// POST /api/forms/configs - body is a YAML or JSON form definition
func (s *Server) apiImportFormConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "Definition too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, fmt.Errorf("read body: %w", err))
		return
	}
	def, err := forms.ParseDefinition(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Forms.Import(r.Context(), def)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, cfg)
}

// GET /api/submissions?form_type=
func (s *Server) apiSubmissions(w http.ResponseWriter, r *http.Request) {
	formType := r.URL.Query().Get("form_type")
	if formType == "" {
		jsonError(w, "form_type is required", http.StatusBadRequest)
		return
	}
	list, err := s.svc.Forms.ListArchived(r.Context(), formType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, list)
}

// GET /api/submissions/object?key=
func (s *Server) apiSubmission(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.Forms.Archived(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, entry)
}
