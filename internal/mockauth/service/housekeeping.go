package service

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner drops expired state and reports how many entries went away.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// HousekeepingService periodically prunes expired token bookkeeping so the
// revocation lists do not grow without bound.
type HousekeepingService struct {
	Cleaner  Cleaner
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to 10 minutes.
func NewHousekeepingService(c Cleaner, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &HousekeepingService{
		Cleaner:  c,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	removed, err := s.Cleaner.Cleanup(context.Background())
	if err != nil {
		s.Logger.Error("housekeeping cleanup failed", "error", err)
		return
	}
	s.Logger.Debug("housekeeping cleanup completed", "removed", removed)
}
