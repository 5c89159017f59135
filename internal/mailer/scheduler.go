package mailer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler periodically runs the reminder scan.
type Scheduler struct {
	service  *Service
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that scans at the given interval.
func NewScheduler(service *Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scan loop. The first scan runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting reminder scheduler", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("reminder scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	if err := s.service.ScanOnce(ctx); err != nil {
		slog.Error("reminder scan failed", "error", err)
	}
}
