package storage

import (
	"context"
	"time"

	"github.com/tazhate/flock/internal/domain"
)

const taskColumns = `id, created_by, assigned_to, title, description, priority, due_date, done_at, created_at`

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	AssignedTo  *int64
	IncludeDone bool
}

func (s *Storage) CreateTask(ctx context.Context, t *domain.Task) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO tasks (created_by, assigned_to, title, description, priority, due_date)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		t.CreatedBy, t.AssignedTo, t.Title, t.Description, t.Priority, t.DueDate,
	)
	if err != nil {
		return err
	}
	t.ID = id
	t.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	t := &domain.Task{}
	found, err := s.get(ctx, t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return t, nil
}

func (s *Storage) ListTasks(ctx context.Context, f TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if f.AssignedTo != nil {
		query += ` AND assigned_to = ?`
		args = append(args, *f.AssignedTo)
	}
	if !f.IncludeDone {
		query += ` AND done_at IS NULL`
	}
	query += ` ORDER BY
		CASE priority WHEN 'urgent' THEN 1 WHEN 'week' THEN 2 ELSE 3 END,
		COALESCE(due_date, '9999-12-31'), id`

	var tasks []*domain.Task
	err := s.selectAll(ctx, &tasks, query, args...)
	return tasks, err
}

// ListOverdueTasks returns open, assigned tasks due before today (YYYY-MM-DD).
func (s *Storage) ListOverdueTasks(ctx context.Context, today string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := s.selectAll(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE done_at IS NULL AND assigned_to IS NOT NULL AND due_date IS NOT NULL AND due_date < ?
		 ORDER BY assigned_to, due_date`,
		today,
	)
	return tasks, err
}

func (s *Storage) UpdateTaskAssignment(ctx context.Context, taskID int64, assignedTo *int64) error {
	_, err := s.exec(ctx, `UPDATE tasks SET assigned_to = ? WHERE id = ?`, assignedTo, taskID)
	return err
}

func (s *Storage) MarkTaskDone(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `UPDATE tasks SET done_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *Storage) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}
