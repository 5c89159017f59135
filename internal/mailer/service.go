package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
)

// TodoSource supplies the todos the reminder scan looks at.
type TodoSource interface {
	DueOn(ctx context.Context, date time.Time) ([]domain.Todo, error)
	OverdueAsOf(ctx context.Context, date time.Time) ([]domain.Todo, error)
}

// UserSource resolves todo owners to their accounts.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Service enqueues outbound emails: the welcome email on registration
// and due-date reminders found by the scan.
type Service struct {
	repo        Repository
	todos       TodoSource
	users       UserSource
	maxAttempts int
	now         func() time.Time
}

// NewService creates a new mailer service.
func NewService(repo Repository, todos TodoSource, users UserSource, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultWorkerConfig().MaxAttempts
	}
	return &Service{
		repo:        repo,
		todos:       todos,
		users:       users,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// OnUserCreated queues the welcome email for a new account.
func (s *Service) OnUserCreated(ctx context.Context, user *domain.User) error {
	item := &QueueItem{
		Kind:      KindWelcome,
		UserID:    user.ID,
		Recipient: user.Email,
		Payload: Payload{
			DisplayName: user.DisplayName,
		},
		Status:      QueueStatusPending,
		MaxAttempts: s.maxAttempts,
	}

	if err := s.repo.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueue welcome email: %w", err)
	}
	return nil
}

// ScanOnce queues reminders for todos due tomorrow and todos already
// overdue. The queue's (todo_id, kind) constraint keeps repeated scans
// from mailing twice about the same todo.
func (s *Service) ScanOnce(ctx context.Context) error {
	today := domain.DateOnly(s.now())

	dueSoon, err := s.todos.DueOn(ctx, today.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("scanning todos due soon: %w", err)
	}
	s.enqueueReminders(ctx, KindDueSoon, dueSoon)

	overdue, err := s.todos.OverdueAsOf(ctx, today)
	if err != nil {
		return fmt.Errorf("scanning overdue todos: %w", err)
	}
	s.enqueueReminders(ctx, KindOverdue, overdue)

	return nil
}

func (s *Service) enqueueReminders(ctx context.Context, kind Kind, items []domain.Todo) {
	for i := range items {
		todo := &items[i]

		user, err := s.users.GetUserByID(ctx, todo.OwnerID)
		if err != nil {
			slog.Warn("reminder owner lookup failed", "todo_id", todo.ID, "error", err)
			continue
		}
		if !user.Active {
			continue
		}

		priority := ""
		if todo.Priority != nil {
			priority = string(*todo.Priority)
		}

		item := &QueueItem{
			Kind:      kind,
			UserID:    user.ID,
			TodoID:    &todo.ID,
			Recipient: user.Email,
			Payload: Payload{
				DisplayName: user.DisplayName,
				TodoTitle:   todo.Title,
				DueDate:     todo.DueDate,
				Priority:    priority,
			},
			Status:      QueueStatusPending,
			MaxAttempts: s.maxAttempts,
		}

		if err := s.repo.Enqueue(ctx, item); err != nil {
			if errors.Is(err, ErrDuplicate) {
				continue
			}
			slog.Error("failed to enqueue reminder", "todo_id", todo.ID, "kind", kind, "error", err)
			continue
		}
		recordReminderEnqueued(kind)
	}
}
