package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

type TaskService struct {
	storage *storage.Storage
}

func NewTaskService(s *storage.Storage) *TaskService {
	return &TaskService{storage: s}
}

func (s *TaskService) Create(ctx context.Context, actor *domain.User, t *domain.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: task title cannot be empty", domain.ErrInvalidInput)
	}
	if t.Priority == "" {
		t.Priority = domain.PrioritySomeday
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, t.Priority)
	}
	if err := validDueDate(t.DueDate); err != nil {
		return err
	}
	if t.AssignedTo != nil {
		if err := s.memberExists(ctx, *t.AssignedTo); err != nil {
			return err
		}
	}

	t.CreatedBy = actor.ID
	if err := s.storage.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := s.storage.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, f storage.TaskFilter) ([]*domain.Task, error) {
	return s.storage.ListTasks(ctx, f)
}

// ListOverdue returns open assigned tasks due before today.
func (s *TaskService) ListOverdue(ctx context.Context, today time.Time) ([]*domain.Task, error) {
	return s.storage.ListOverdueTasks(ctx, today.Format(domain.DateLayout))
}

// Assign sets or clears the member responsible for the task.
func (s *TaskService) Assign(ctx context.Context, actor *domain.User, taskID int64, memberID *int64) error {
	if _, err := s.modifiable(ctx, actor, taskID); err != nil {
		return err
	}
	if memberID != nil {
		if err := s.memberExists(ctx, *memberID); err != nil {
			return err
		}
	}
	return s.storage.UpdateTaskAssignment(ctx, taskID, memberID)
}

func (s *TaskService) MarkDone(ctx context.Context, actor *domain.User, taskID int64) error {
	if _, err := s.modifiable(ctx, actor, taskID); err != nil {
		return err
	}
	return s.storage.MarkTaskDone(ctx, taskID)
}

func (s *TaskService) Delete(ctx context.Context, actor *domain.User, taskID int64) error {
	if _, err := s.modifiable(ctx, actor, taskID); err != nil {
		return err
	}
	return s.storage.DeleteTask(ctx, taskID)
}

// modifiable loads the task and checks that actor created it or is an admin.
func (s *TaskService) modifiable(ctx context.Context, actor *domain.User, taskID int64) (*domain.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (task.CreatedBy != actor.ID && !actor.IsAdmin()) {
		return nil, fmt.Errorf("task %d: %w", taskID, domain.ErrAccessDenied)
	}
	return task, nil
}

func (s *TaskService) memberExists(ctx context.Context, memberID int64) error {
	m, err := s.storage.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}
	if m == nil {
		return fmt.Errorf("%w: member %d does not exist", domain.ErrInvalidInput, memberID)
	}
	return nil
}

func validDueDate(due *string) error {
	if due == nil {
		return nil
	}
	if _, err := domain.ParseDate(*due); err != nil {
		return fmt.Errorf("%w: due date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return nil
}

func FormatTaskList(tasks []*domain.Task) string {
	if len(tasks) == 0 {
		return "No tasks"
	}

	var sb strings.Builder
	for _, t := range tasks {
		status := "⬜"
		if t.IsDone() {
			status = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s #%d %s", status, t.PriorityEmoji(), t.ID, t.Title))
		if t.DueDate != nil {
			sb.WriteString(" (due " + *t.DueDate + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
