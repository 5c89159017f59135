package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/congdinh/todo-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enqueueRecorder implements Repository and records enqueued items.
type enqueueRecorder struct {
	queueRecorder
	items      []*QueueItem
	duplicates map[string]bool // todoID+kind pairs that already exist
}

func (e *enqueueRecorder) Enqueue(_ context.Context, item *QueueItem) error {
	if item.TodoID != nil && e.duplicates[*item.TodoID+":"+string(item.Kind)] {
		return ErrDuplicate
	}
	e.items = append(e.items, item)
	return nil
}

// stubTodoSource implements TodoSource.
type stubTodoSource struct {
	dueSoon []domain.Todo
	overdue []domain.Todo
}

func (s *stubTodoSource) DueOn(_ context.Context, _ time.Time) ([]domain.Todo, error) {
	return s.dueSoon, nil
}

func (s *stubTodoSource) OverdueAsOf(_ context.Context, _ time.Time) ([]domain.Todo, error) {
	return s.overdue, nil
}

// stubUserSource implements UserSource.
type stubUserSource struct {
	users map[string]*domain.User
}

func (s *stubUserSource) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func activeUser(id, email string) *domain.User {
	return &domain.User{ID: id, Email: email, DisplayName: "Owner", Active: true}
}

func dueTodo(id, ownerID string, due time.Time) domain.Todo {
	high := domain.TodoPriorityHigh
	return domain.Todo{
		ID:       id,
		OwnerID:  ownerID,
		Title:    "Task " + id,
		Status:   domain.TodoStatusIncomplete,
		Priority: &high,
		DueDate:  &due,
	}
}

func TestService_OnUserCreated(t *testing.T) {
	repo := &enqueueRecorder{}
	service := NewService(repo, &stubTodoSource{}, &stubUserSource{}, 3)

	err := service.OnUserCreated(context.Background(), &domain.User{
		ID:          "user-1",
		Email:       "new@example.com",
		DisplayName: "Cong",
	})

	require.NoError(t, err)
	require.Len(t, repo.items, 1)
	item := repo.items[0]
	assert.Equal(t, KindWelcome, item.Kind)
	assert.Equal(t, "new@example.com", item.Recipient)
	assert.Equal(t, "Cong", item.Payload.DisplayName)
	assert.Nil(t, item.TodoID)
	assert.Equal(t, 3, item.MaxAttempts)
}

func TestService_ScanOnce(t *testing.T) {
	due := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	past := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	repo := &enqueueRecorder{}
	todos := &stubTodoSource{
		dueSoon: []domain.Todo{dueTodo("todo-1", "user-1", due)},
		overdue: []domain.Todo{dueTodo("todo-2", "user-1", past)},
	}
	users := &stubUserSource{users: map[string]*domain.User{
		"user-1": activeUser("user-1", "owner@example.com"),
	}}

	service := NewService(repo, todos, users, 3)
	service.now = func() time.Time {
		return time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	}

	require.NoError(t, service.ScanOnce(context.Background()))

	require.Len(t, repo.items, 2)
	assert.Equal(t, KindDueSoon, repo.items[0].Kind)
	assert.Equal(t, "todo-1", *repo.items[0].TodoID)
	assert.Equal(t, KindOverdue, repo.items[1].Kind)
	assert.Equal(t, "todo-2", *repo.items[1].TodoID)
	assert.Equal(t, "owner@example.com", repo.items[0].Recipient)
	assert.Equal(t, "high", repo.items[0].Payload.Priority)
}

func TestService_ScanOnce_SkipsDuplicates(t *testing.T) {
	due := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	repo := &enqueueRecorder{duplicates: map[string]bool{"todo-1:due_soon": true}}
	todos := &stubTodoSource{dueSoon: []domain.Todo{dueTodo("todo-1", "user-1", due)}}
	users := &stubUserSource{users: map[string]*domain.User{
		"user-1": activeUser("user-1", "owner@example.com"),
	}}

	service := NewService(repo, todos, users, 3)

	require.NoError(t, service.ScanOnce(context.Background()))
	assert.Empty(t, repo.items)
}

func TestService_ScanOnce_SkipsInactiveOwners(t *testing.T) {
	due := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	inactive := activeUser("user-1", "gone@example.com")
	inactive.Active = false

	repo := &enqueueRecorder{}
	todos := &stubTodoSource{dueSoon: []domain.Todo{dueTodo("todo-1", "user-1", due)}}
	users := &stubUserSource{users: map[string]*domain.User{"user-1": inactive}}

	service := NewService(repo, todos, users, 3)

	require.NoError(t, service.ScanOnce(context.Background()))
	assert.Empty(t, repo.items)
}

func TestService_ScanOnce_SkipsUnknownOwners(t *testing.T) {
	due := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	repo := &enqueueRecorder{}
	todos := &stubTodoSource{dueSoon: []domain.Todo{dueTodo("todo-1", "missing", due)}}
	users := &stubUserSource{users: map[string]*domain.User{}}

	service := NewService(repo, todos, users, 3)

	require.NoError(t, service.ScanOnce(context.Background()))
	assert.Empty(t, repo.items)
}
