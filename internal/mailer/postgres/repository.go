// Package postgres provides the PostgreSQL implementation of the mail queue.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congdinh/todo-backend/internal/mailer"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements mailer.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a queue item. For reminder kinds the (todo_id, kind)
// unique index turns a repeat into ErrDuplicate.
func (r *Repository) Enqueue(ctx context.Context, item *mailer.QueueItem) error {
	query := `
		INSERT INTO mail_queue (kind, user_id, todo_id, recipient, payload, status, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (todo_id, kind) WHERE todo_id IS NOT NULL DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.Kind,
		item.UserID,
		item.TodoID,
		item.Recipient,
		item.Payload,
		item.Status,
		item.MaxAttempts,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mailer.ErrDuplicate
		}
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// FetchPending claims up to limit due items. SKIP LOCKED keeps
// concurrent workers from claiming the same rows.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]*mailer.QueueItem, error) {
	query := `
		UPDATE mail_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM mail_queue
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, user_id, todo_id, recipient, payload, status, attempts, max_attempts, next_attempt_at, COALESCE(last_error, ''), created_at, updated_at, sent_at
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending mail: %w", err)
	}
	defer rows.Close()

	items := make([]*mailer.QueueItem, 0)
	for rows.Next() {
		var item mailer.QueueItem
		err := rows.Scan(
			&item.ID,
			&item.Kind,
			&item.UserID,
			&item.TodoID,
			&item.Recipient,
			&item.Payload,
			&item.Status,
			&item.Attempts,
			&item.MaxAttempts,
			&item.NextAttemptAt,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

// MarkAsSent marks an item sent.
func (r *Repository) MarkAsSent(ctx context.Context, id string) error {
	query := `
		UPDATE mail_queue
		SET status = 'sent', attempts = attempts + 1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark mail as sent: %w", err)
	}
	return nil
}

// MarkAsFailed marks an item permanently failed.
func (r *Repository) MarkAsFailed(ctx context.Context, id string, cause error) error {
	query := `
		UPDATE mail_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("mark mail as failed: %w", err)
	}
	return nil
}

// MarkForRetry schedules another attempt.
func (r *Repository) MarkForRetry(ctx context.Context, id string, cause error, nextAttemptAt time.Time) error {
	query := `
		UPDATE mail_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, cause.Error(), nextAttemptAt); err != nil {
		return fmt.Errorf("mark mail for retry: %w", err)
	}
	return nil
}

// GetQueueStats returns queue size counts by status.
func (r *Repository) GetQueueStats(ctx context.Context) (*mailer.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM mail_queue
	`
	var stats mailer.QueueStats
	err := r.db.QueryRow(ctx, query).Scan(&stats.Pending, &stats.Processing, &stats.Sent, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return &stats, nil
}
