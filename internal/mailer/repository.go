package mailer

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate reports that an equivalent reminder is already queued.
var ErrDuplicate = errors.New("mail already queued")

// Repository defines the interface for mail queue data access.
type Repository interface {
	// Enqueue inserts a queue item. Reminder kinds conflicting on
	// (todo_id, kind) return ErrDuplicate.
	Enqueue(ctx context.Context, item *QueueItem) error
	// FetchPending claims up to limit due items and marks them
	// processing. Concurrent workers never claim the same item.
	FetchPending(ctx context.Context, limit int) ([]*QueueItem, error)
	MarkAsSent(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, cause error) error
	MarkForRetry(ctx context.Context, id string, cause error, nextAttemptAt time.Time) error
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}
