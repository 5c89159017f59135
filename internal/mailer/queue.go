// Package mailer provides the outbound email pipeline: a persistent
// queue, a retrying worker, and the reminder scheduler that feeds it.
package mailer

import "time"

// Kind identifies the email being sent.
type Kind string

// Mail kinds.
const (
	KindWelcome Kind = "welcome"
	KindDueSoon Kind = "due_soon"
	KindOverdue Kind = "overdue"
)

// QueueStatus represents the status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// Payload carries the template data for a queued email.
type Payload struct {
	DisplayName string     `json:"display_name,omitempty"`
	TodoTitle   string     `json:"todo_title,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// QueueItem represents an email in the queue. TodoID is nil for
// account emails; reminder kinds are deduplicated on (todo_id, kind).
type QueueItem struct {
	ID            string
	Kind          Kind
	UserID        string
	TodoID        *string
	Recipient     string
	Payload       Payload
	Status        QueueStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// QueueStats holds queue size counts by status.
type QueueStats struct {
	Pending    int64
	Processing int64
	Sent       int64
	Failed     int64
}
