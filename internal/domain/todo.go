package domain

import (
	"strings"
	"time"
)

// TodoStatus represents the completion state of a todo.
type TodoStatus string

// Todo statuses. The only allowed transition is incomplete <-> completed.
const (
	TodoStatusIncomplete TodoStatus = "incomplete"
	TodoStatusCompleted  TodoStatus = "completed"
)

// IsValid checks if the todo status is valid.
func (s TodoStatus) IsValid() bool {
	switch s {
	case TodoStatusIncomplete, TodoStatusCompleted:
		return true
	}
	return false
}

// TodoPriority represents the optional priority of a todo.
type TodoPriority string

// Todo priorities.
const (
	TodoPriorityLow    TodoPriority = "low"
	TodoPriorityMedium TodoPriority = "medium"
	TodoPriorityHigh   TodoPriority = "high"
)

// IsValid checks if the priority is valid.
func (p TodoPriority) IsValid() bool {
	switch p {
	case TodoPriorityLow, TodoPriorityMedium, TodoPriorityHigh:
		return true
	}
	return false
}

// Title and description length bounds.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// Todo represents a single task owned by exactly one user.
// DeletedAt, once set, excludes the todo from all standard queries.
type Todo struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      TodoStatus    `json:"status"`
	Priority    *TodoPriority `json:"priority,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

// NewTodo constructs a todo for the given owner, enforcing invariants.
// The title is trimmed; dueDate is interpreted as a calendar date and must
// not be before today.
func NewTodo(ownerID, title, description string, priority *TodoPriority, dueDate *time.Time, today time.Time) (*Todo, error) {
	title = strings.TrimSpace(title)

	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}
	if priority != nil && !priority.IsValid() {
		return nil, &ValidationError{Field: "priority", Message: "must be one of low, medium, high"}
	}
	if dueDate != nil {
		if err := ValidateDueDate(*dueDate, today); err != nil {
			return nil, err
		}
		d := DateOnly(*dueDate)
		dueDate = &d
	}

	return &Todo{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      TodoStatusIncomplete,
		Priority:    priority,
		DueDate:     dueDate,
	}, nil
}

// ValidateTitle checks the title invariant. The caller trims first.
func ValidateTitle(title string) error {
	if title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if len(title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: "must be at most 200 characters"}
	}
	return nil
}

// ValidateDescription checks the description length bound.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: "must be at most 2000 characters"}
	}
	return nil
}

// ValidateDueDate rejects due dates before today. Due today is allowed.
func ValidateDueDate(dueDate, today time.Time) error {
	if DateOnly(dueDate).Before(DateOnly(today)) {
		return &ValidationError{Field: "due_date", Message: "must not be in the past"}
	}
	return nil
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MarkComplete transitions the todo to completed and stamps UpdatedAt.
func (t *Todo) MarkComplete(now time.Time) {
	t.Status = TodoStatusCompleted
	t.UpdatedAt = now
}

// MarkIncomplete transitions the todo back to incomplete and stamps UpdatedAt.
func (t *Todo) MarkIncomplete(now time.Time) {
	t.Status = TodoStatusIncomplete
	t.UpdatedAt = now
}

// IsOverdue returns true if the due date has passed and the todo is not
// completed. Todos without a due date are never overdue.
func (t *Todo) IsOverdue(today time.Time) bool {
	if t.DueDate == nil || t.Status == TodoStatusCompleted {
		return false
	}
	return t.DueDate.Before(DateOnly(today))
}

// IsDeleted returns true if the todo is soft-deleted.
func (t *Todo) IsDeleted() bool {
	return t.DeletedAt != nil
}
