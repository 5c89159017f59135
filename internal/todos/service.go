package todos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
)

// Service implements todo business logic. All owner-facing operations
// are scoped to the calling user; admins read across owners via Search
// with an empty owner id.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new todos service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput contains data for creating a todo.
type CreateInput struct {
	Title       string
	Description string
	Priority    *domain.TodoPriority
	DueDate     *time.Time
}

// Create creates a new todo owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Todo, error) {
	todo, err := domain.NewTodo(ownerID, input.Title, input.Description, input.Priority, input.DueDate, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}
	return todo, nil
}

// Get returns a todo owned by ownerID. Soft-deleted todos and todos
// owned by other users are reported as not found.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	todo, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if todo.IsDeleted() {
		return nil, ErrTodoNotFound
	}
	return todo, nil
}

// UpdateInput carries a partial update. Nil fields keep their current
// value; ClearPriority and ClearDueDate drop the optional fields.
type UpdateInput struct {
	Title         *string
	Description   *string
	Priority      *domain.TodoPriority
	ClearPriority bool
	DueDate       *time.Time
	ClearDueDate  bool
}

func (in UpdateInput) isEmpty() bool {
	return in.Title == nil && in.Description == nil &&
		in.Priority == nil && !in.ClearPriority &&
		in.DueDate == nil && !in.ClearDueDate
}

// Update applies a partial update to a todo. At least one field must be
// present. The due date is only re-validated against today when it
// actually changes, so a todo that has drifted overdue can still be
// edited without moving its date.
func (s *Service) Update(ctx context.Context, ownerID, id string, input UpdateInput) (*domain.Todo, error) {
	if input.isEmpty() {
		return nil, ErrEmptyUpdate
	}

	todo, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := domain.ValidateTitle(title); err != nil {
			return nil, err
		}
		todo.Title = title
	}

	if input.Description != nil {
		if err := domain.ValidateDescription(*input.Description); err != nil {
			return nil, err
		}
		todo.Description = *input.Description
	}

	switch {
	case input.ClearPriority:
		todo.Priority = nil
	case input.Priority != nil:
		if !input.Priority.IsValid() {
			return nil, &domain.ValidationError{Field: "priority", Message: "must be one of low, medium, high"}
		}
		todo.Priority = input.Priority
	}

	switch {
	case input.ClearDueDate:
		todo.DueDate = nil
	case input.DueDate != nil:
		d := domain.DateOnly(*input.DueDate)
		if !sameDate(todo.DueDate, &d) {
			if err := domain.ValidateDueDate(d, s.now()); err != nil {
				return nil, err
			}
		}
		todo.DueDate = &d
	}

	todo.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, fmt.Errorf("updating todo: %w", err)
	}
	return todo, nil
}

// Toggle flips a todo between incomplete and completed.
func (s *Service) Toggle(ctx context.Context, ownerID, id string) (*domain.Todo, error) {
	todo, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if todo.Status == domain.TodoStatusCompleted {
		todo.MarkIncomplete(s.now())
	} else {
		todo.MarkComplete(s.now())
	}

	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, fmt.Errorf("updating todo: %w", err)
	}
	return todo, nil
}

// Delete soft-deletes a todo. Deleting an already deleted or missing
// todo returns ErrTodoNotFound.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.repo.SoftDelete(ctx, id, ownerID, s.now())
}

// Page is one page of search results.
type Page struct {
	Items         []domain.Todo
	TotalElements int64
	TotalPages    int
	Page          int
	Size          int
}

// List runs a search and assembles the page metadata.
func (s *Service) List(ctx context.Context, query SearchQuery) (*Page, error) {
	query.Normalize()

	items, total, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching todos: %w", err)
	}

	totalPages := int((total + int64(query.Limit) - 1) / int64(query.Limit))

	return &Page{
		Items:         items,
		TotalElements: total,
		TotalPages:    totalPages,
		Page:          query.Offset / query.Limit,
		Size:          query.Limit,
	}, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
