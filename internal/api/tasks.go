package api

import (
	"net/http"
	"strconv"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

// GET /api/tasks?assigned_to=&include_done=1
func (s *Server) apiTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TaskFilter{IncludeDone: q.Get("include_done") == "1" || q.Get("include_done") == "true"}
	if v := q.Get("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, "Invalid assigned_to", http.StatusBadRequest)
			return
		}
		filter.AssignedTo = &id
	}
	tasks, err := s.svc.Tasks.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, tasks)
}

// POST /api/tasks
func (s *Server) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Priority    string  `json:"priority"`
		DueDate     *string `json:"due_date"`
		AssignedTo  *int64  `json:"assigned_to"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task := &domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
	}
	if err := s.svc.Tasks.Create(r.Context(), userFromContext(r.Context()), task); err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, task)
}

// GET /api/tasks/overdue
func (s *Server) apiOverdueTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.Tasks.ListOverdue(r.Context(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, tasks)
}

// GET /api/tasks/{id}
func (s *Server) apiTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Tasks.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, task)
}

// DELETE /api/tasks/{id}
func (s *Server) apiDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tasks.Delete(r.Context(), userFromContext(r.Context()), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// PUT /api/tasks/{id}/assign - a null member_id unassigns.
func (s *Server) apiAssignTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID *int64 `json:"member_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Tasks.Assign(r.Context(), userFromContext(r.Context()), pathID(r), req.MemberID); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// POST /api/tasks/{id}/done
func (s *Server) apiTaskDone(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tasks.MarkDone(r.Context(), userFromContext(r.Context()), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}
