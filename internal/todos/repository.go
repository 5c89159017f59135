package todos

import (
	"context"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
)

// Sort fields accepted by Search.
const (
	SortByCreatedAt = "created_at"
	SortByDueDate   = "due_date"
	SortByTitle     = "title"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SearchQuery represents filter criteria for listing todos.
// An empty OwnerID matches todos of every owner; regular listings
// always scope by owner, only admin listings leave it empty.
type SearchQuery struct {
	OwnerID        string
	Status         *domain.TodoStatus
	Priorities     []domain.TodoPriority
	Text           string
	DueBefore      *time.Time
	DueAfter       *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
	SortBy         string
	SortDir        string
}

// Normalize clamps pagination and fills sorting defaults.
func (q *SearchQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	switch q.SortBy {
	case SortByCreatedAt, SortByDueDate, SortByTitle:
	default:
		q.SortBy = SortByCreatedAt
	}

	switch q.SortDir {
	case SortAsc, SortDesc:
	default:
		if q.SortBy == SortByCreatedAt {
			q.SortDir = SortDesc
		} else {
			q.SortDir = SortAsc
		}
	}
}

// Repository defines the interface for todo data operations.
type Repository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	// GetByID scopes the lookup by owner when ownerID is non-empty, so a
	// todo owned by someone else is indistinguishable from a missing one.
	GetByID(ctx context.Context, id, ownerID string) (*domain.Todo, error)
	Update(ctx context.Context, todo *domain.Todo) error
	SoftDelete(ctx context.Context, id, ownerID string, deletedAt time.Time) error
	Search(ctx context.Context, query SearchQuery) ([]domain.Todo, int64, error)
	// DueOn returns non-deleted incomplete todos whose due date equals the
	// given calendar date.
	DueOn(ctx context.Context, date time.Time) ([]domain.Todo, error)
	// OverdueAsOf returns non-deleted incomplete todos whose due date is
	// strictly before the given calendar date.
	OverdueAsOf(ctx context.Context, date time.Time) ([]domain.Todo, error)
}
