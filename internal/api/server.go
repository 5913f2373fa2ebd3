// Package api serves the staff and public HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tazhate/flock/config"
	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/service"
	"github.com/tazhate/flock/internal/storage"
)

// maxBodyBytes caps request bodies, including form config uploads.
const maxBodyBytes = 1 << 20

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Services groups the application services the API exposes.
type Services struct {
	Members    *service.MemberService
	Tasks      *service.TaskService
	Rota       *service.RotaService
	Messages   *service.MessageService
	Generation *service.GenerationService
	Forms      *service.FormService
	Calendar   *service.CalendarService
}

type Server struct {
	cfg     *config.Config
	storage *storage.Storage
	svc     Services
	metrics *metrics.Metrics
	webhook http.Handler
	now     func() time.Time
}

func NewServer(cfg *config.Config, store *storage.Storage, svc Services, m *metrics.Metrics) *Server {
	return &Server{cfg: cfg, storage: store, svc: svc, metrics: m, now: time.Now}
}

// SetWebhook mounts the Telegram webhook handler at /bot.
func (s *Server) SetWebhook(h http.Handler) {
	s.webhook = h
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "Not found", http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// Open
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	if s.webhook != nil {
		router.Handle("/bot", s.webhook).Methods(http.MethodPost)
	}

	// Form configuration shares the /api/forms prefix with public forms,
	// so it is registered first.
	configs := router.PathPrefix("/api/forms/configs").Subrouter()
	configs.Use(s.authenticate, s.requireAdmin)
	configs.HandleFunc("", s.apiFormConfigs).Methods(http.MethodGet)
	configs.HandleFunc("", s.apiImportFormConfig).Methods(http.MethodPost)

	router.HandleFunc("/api/forms/{formType}", s.apiDescribeForm).Methods(http.MethodGet)
	router.HandleFunc("/api/forms/{formType}/submit", s.apiSubmitForm).Methods(http.MethodPost)

	// Staff
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/me", s.apiMe).Methods(http.MethodGet)

	api.HandleFunc("/members", s.apiMembers).Methods(http.MethodGet)
	api.HandleFunc("/members", s.apiCreateMember).Methods(http.MethodPost)
	api.HandleFunc("/members/newcomers", s.apiNewcomers).Methods(http.MethodGet)
	api.HandleFunc("/members/{id:[0-9]+}", s.apiMember).Methods(http.MethodGet)
	api.HandleFunc("/members/{id:[0-9]+}", s.apiUpdateMember).Methods(http.MethodPut)
	api.HandleFunc("/members/{id:[0-9]+}", s.apiDeleteMember).Methods(http.MethodDelete)
	api.HandleFunc("/members/{id:[0-9]+}/status", s.apiMemberStatus).Methods(http.MethodPut)
	api.HandleFunc("/members/{id:[0-9]+}/telegram", s.apiMemberTelegram).Methods(http.MethodPut)
	api.HandleFunc("/members/{id:[0-9]+}/messages", s.apiMemberMessages).Methods(http.MethodGet)
	api.HandleFunc("/members/{id:[0-9]+}/messages", s.apiSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/members/{id:[0-9]+}/rota", s.apiMemberRota).Methods(http.MethodGet)

	api.HandleFunc("/messages/{id:[0-9]+}/read", s.apiMarkRead).Methods(http.MethodPut)

	api.HandleFunc("/tasks", s.apiTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.apiCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/overdue", s.apiOverdueTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.apiTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.apiDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id:[0-9]+}/assign", s.apiAssignTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id:[0-9]+}/done", s.apiTaskDone).Methods(http.MethodPost)

	api.HandleFunc("/services", s.apiServices).Methods(http.MethodGet)
	api.HandleFunc("/services.ics", s.apiServicesFeed).Methods(http.MethodGet)
	api.HandleFunc("/services/{id:[0-9]+}", s.apiService).Methods(http.MethodGet)
	api.HandleFunc("/services/{id:[0-9]+}/rota", s.apiServiceRota).Methods(http.MethodGet)
	api.HandleFunc("/services/{id:[0-9]+}/rota", s.apiAssignRota).Methods(http.MethodPost)
	api.HandleFunc("/rota/{id:[0-9]+}", s.apiUnassignRota).Methods(http.MethodDelete)

	api.HandleFunc("/announcements", s.apiAnnouncements).Methods(http.MethodGet)
	api.HandleFunc("/announcements", s.apiCreateAnnouncement).Methods(http.MethodPost)
	api.HandleFunc("/announcements/{id:[0-9]+}", s.apiDeleteAnnouncement).Methods(http.MethodDelete)

	api.HandleFunc("/prayers", s.apiPrayers).Methods(http.MethodGet)
	api.HandleFunc("/prayers", s.apiCreatePrayer).Methods(http.MethodPost)
	api.HandleFunc("/prayers/{id:[0-9]+}", s.apiPrayer).Methods(http.MethodGet)
	api.HandleFunc("/prayers/{id:[0-9]+}", s.apiUpdatePrayer).Methods(http.MethodPut)

	api.HandleFunc("/templates", s.apiTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates", s.apiCreateTemplate).Methods(http.MethodPost)
	api.HandleFunc("/patterns", s.apiPatterns).Methods(http.MethodGet)
	api.HandleFunc("/patterns", s.apiCreatePattern).Methods(http.MethodPost)
	api.HandleFunc("/patterns/preview", s.apiPreviewDraft).Methods(http.MethodPost)
	api.HandleFunc("/patterns/{id:[0-9]+}", s.apiPattern).Methods(http.MethodGet)
	api.HandleFunc("/patterns/{id:[0-9]+}/active", s.apiPatternActive).Methods(http.MethodPut)
	api.HandleFunc("/patterns/{id:[0-9]+}/preview", s.apiPreviewPattern).Methods(http.MethodGet)

	// Admin
	admin := api.NewRoute().Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/patterns/generate", s.apiGenerateAll).Methods(http.MethodPost)
	admin.HandleFunc("/patterns/{id:[0-9]+}/generate", s.apiGenerate).Methods(http.MethodPost)
	admin.HandleFunc("/services/{id:[0-9]+}", s.apiDeleteService).Methods(http.MethodDelete)
	admin.HandleFunc("/calendar/publish", s.apiPublishCalendar).Methods(http.MethodPost)
	admin.HandleFunc("/calendar/calendars", s.apiCalendars).Methods(http.MethodGet)
	admin.HandleFunc("/submissions", s.apiSubmissions).Methods(http.MethodGet)
	admin.HandleFunc("/submissions/object", s.apiSubmission).Methods(http.MethodGet)

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok", "database": s.storage.Driver()})
}

func jsonResponse(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// writeError maps service errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConfigNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrMissingLookupValue),
		errors.Is(err, domain.ErrInvalidRule),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAccessDenied):
		jsonError(w, err.Error(), http.StatusForbidden)
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) today() time.Time {
	return domain.CivilDate(s.now().In(s.cfg.Timezone))
}

// dateRange reads ?from= and ?to= (YYYY-MM-DD). from defaults to today and
// to defaults to the generation horizon.
func (s *Server) dateRange(r *http.Request) (time.Time, time.Time, error) {
	from := s.today()
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid from date %q", domain.ErrInvalidInput, v)
		}
		from = d
	}
	to := s.cfg.Horizon(from)
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid to date %q", domain.ErrInvalidInput, v)
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", domain.ErrInvalidInput)
	}
	return from, to, nil
}
