package domain

import "time"

type Priority string

const (
	PriorityUrgent  Priority = "urgent"
	PriorityWeek    Priority = "week"
	PrioritySomeday Priority = "someday"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityWeek, PrioritySomeday:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `db:"id" json:"id"`
	CreatedBy   int64      `db:"created_by" json:"created_by"`
	AssignedTo  *int64     `db:"assigned_to" json:"assigned_to,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Priority    Priority   `db:"priority" json:"priority"`
	DueDate     *string    `db:"due_date" json:"due_date,omitempty"` // YYYY-MM-DD
	DoneAt      *time.Time `db:"done_at" json:"done_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (t *Task) IsDone() bool {
	return t.DoneAt != nil
}

// IsOverdue reports whether an open task's due date is before today.
func (t *Task) IsOverdue(today time.Time) bool {
	if t.IsDone() || t.DueDate == nil {
		return false
	}
	return *t.DueDate < today.Format(DateLayout)
}

func (t *Task) PriorityEmoji() string {
	switch t.Priority {
	case PriorityUrgent:
		return "🔴"
	case PriorityWeek:
		return "🟡"
	case PrioritySomeday:
		return "🟢"
	default:
		return "⚪"
	}
}
