package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/congdinh/todo-backend/internal/mailer/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_CalculateNextAttempt(t *testing.T) {
	config := WorkerConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
	}

	worker := &Worker{config: config}

	tests := []struct {
		name            string
		attempt         int
		expectedBackoff time.Duration
	}{
		{"first retry", 1, 1 * time.Second},
		{"second retry", 2, 2 * time.Second},
		{"third retry", 3, 4 * time.Second},
		{"fourth retry", 4, 8 * time.Second},
		{"fifth retry", 5, 16 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now()
			result := worker.calculateNextAttempt(tt.attempt)
			after := time.Now()

			expectedMin := before.Add(tt.expectedBackoff)
			expectedMax := after.Add(tt.expectedBackoff)

			assert.True(t, result.After(expectedMin) || result.Equal(expectedMin),
				"result %v should be >= %v", result, expectedMin)
			assert.True(t, result.Before(expectedMax) || result.Equal(expectedMax),
				"result %v should be <= %v", result, expectedMax)
		})
	}
}

func TestWorker_CalculateNextAttempt_MaxBackoff(t *testing.T) {
	config := WorkerConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	worker := &Worker{config: config}

	before := time.Now()
	result := worker.calculateNextAttempt(100)

	expectedMin := before.Add(config.MaxBackoff)
	assert.True(t, result.After(expectedMin) || result.Equal(expectedMin),
		"result should be at least %v after now", config.MaxBackoff)

	expectedMax := time.Now().Add(config.MaxBackoff + time.Second)
	assert.True(t, result.Before(expectedMax),
		"result should not exceed MaxBackoff")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable error",
			err:      NewRetryableError(errors.New("temporary error")),
			expected: true,
		},
		{
			name:     "non-retryable error",
			err:      NewNonRetryableError(errors.New("permanent error")),
			expected: false,
		},
		{
			name:     "generic error defaults to retryable",
			err:      errors.New("unknown error"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

// queueRecorder implements Repository for worker tests.
type queueRecorder struct {
	sent    []string
	failed  []string
	retried []string
}

func (q *queueRecorder) Enqueue(_ context.Context, _ *QueueItem) error { return nil }

func (q *queueRecorder) FetchPending(_ context.Context, _ int) ([]*QueueItem, error) {
	return nil, nil
}

func (q *queueRecorder) MarkAsSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *queueRecorder) MarkAsFailed(_ context.Context, id string, _ error) error {
	q.failed = append(q.failed, id)
	return nil
}

func (q *queueRecorder) MarkForRetry(_ context.Context, id string, _ error, _ time.Time) error {
	q.retried = append(q.retried, id)
	return nil
}

func (q *queueRecorder) GetQueueStats(_ context.Context) (*QueueStats, error) {
	return &QueueStats{}, nil
}

// stubSender implements Sender for worker tests.
type stubSender struct {
	err  error
	sent []email.Message
}

func (s *stubSender) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestWorker(t *testing.T, repo Repository, sender Sender) *Worker {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)
	return NewWorker(DefaultWorkerConfig(), repo, sender, renderer)
}

func welcomeItem(attempts int) *QueueItem {
	return &QueueItem{
		ID:          "item-1",
		Kind:        KindWelcome,
		Recipient:   "test@example.com",
		Payload:     Payload{DisplayName: "Cong"},
		Status:      QueueStatusProcessing,
		Attempts:    attempts,
		MaxAttempts: 3,
	}
}

func TestWorker_ProcessItem_Success(t *testing.T) {
	repo := &queueRecorder{}
	sender := &stubSender{}
	worker := newTestWorker(t, repo, sender)

	worker.processItem(context.Background(), welcomeItem(0))

	assert.Equal(t, []string{"item-1"}, repo.sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "test@example.com", sender.sent[0].To)
	assert.Equal(t, "Welcome to your todo list", sender.sent[0].Subject)
}

func TestWorker_ProcessItem_RetryOnTransientError(t *testing.T) {
	repo := &queueRecorder{}
	sender := &stubSender{err: NewRetryableError(errors.New("451 try again"))}
	worker := newTestWorker(t, repo, sender)

	worker.processItem(context.Background(), welcomeItem(0))

	assert.Empty(t, repo.sent)
	assert.Empty(t, repo.failed)
	assert.Equal(t, []string{"item-1"}, repo.retried)
}

func TestWorker_ProcessItem_FailsOnPermanentError(t *testing.T) {
	repo := &queueRecorder{}
	sender := &stubSender{err: NewNonRetryableError(errors.New("550 no such user"))}
	worker := newTestWorker(t, repo, sender)

	worker.processItem(context.Background(), welcomeItem(0))

	assert.Equal(t, []string{"item-1"}, repo.failed)
	assert.Empty(t, repo.retried)
}

func TestWorker_ProcessItem_FailsAfterMaxAttempts(t *testing.T) {
	repo := &queueRecorder{}
	sender := &stubSender{err: NewRetryableError(errors.New("451 try again"))}
	worker := newTestWorker(t, repo, sender)

	// attempts+1 reaches the limit, so no further retry is scheduled
	worker.processItem(context.Background(), welcomeItem(2))

	assert.Equal(t, []string{"item-1"}, repo.failed)
	assert.Empty(t, repo.retried)
}

func TestWorker_ProcessItem_UnknownKindFails(t *testing.T) {
	repo := &queueRecorder{}
	sender := &stubSender{}
	worker := newTestWorker(t, repo, sender)

	item := welcomeItem(0)
	item.Kind = Kind("digest")

	worker.processItem(context.Background(), item)

	assert.Equal(t, []string{"item-1"}, repo.failed)
	assert.Empty(t, sender.sent)
}
