package mailer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "todoservice"

var (
	mailQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mailer",
			Name:      "queue_size",
			Help:      "Number of emails in queue by status",
		},
		[]string{"status"},
	)

	mailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailer",
			Name:      "sent_total",
			Help:      "Total emails processed",
		},
		[]string{"kind", "status"},
	)

	mailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mailer",
			Name:      "send_duration_seconds",
			Help:      "Time to send an email",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	mailsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailer",
			Name:      "queue_fetched_total",
			Help:      "Total emails fetched from queue (before send attempt). Sum of sent_total should match this.",
		},
	)

	remindersEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailer",
			Name:      "reminders_enqueued_total",
			Help:      "Total reminder emails enqueued by the scheduler",
		},
		[]string{"kind"},
	)
)

// recordMailSent records a processed email metric.
func recordMailSent(kind, status string) {
	mailsSent.WithLabelValues(kind, status).Inc()
}

// recordMailDuration records email send duration.
func recordMailDuration(kind string, duration time.Duration) {
	mailSendDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// recordQueueFetched records the number of items fetched from the queue.
func recordQueueFetched(count int) {
	mailsFetched.Add(float64(count))
}

// recordReminderEnqueued records a reminder enqueued by the scheduler.
func recordReminderEnqueued(kind Kind) {
	remindersEnqueued.WithLabelValues(string(kind)).Inc()
}

// RecordQueueStats updates queue size metrics.
func RecordQueueStats(stats *QueueStats) {
	mailQueueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	mailQueueSize.WithLabelValues("processing").Set(float64(stats.Processing))
	mailQueueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	mailQueueSize.WithLabelValues("failed").Set(float64(stats.Failed))
}
