package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// InventoryCheckScheduler runs the inventory check periodically
type InventoryCheckScheduler struct {
	watchdog *InventoryWatchdog
	interval time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ErrSchedulerStarted is returned by Start on a scheduler that was already started
var ErrSchedulerStarted = errors.New("inventory check scheduler already started")

// NewInventoryCheckScheduler creates a new scheduler
func NewInventoryCheckScheduler(watchdog *InventoryWatchdog, interval time.Duration, log *logger.Logger) *InventoryCheckScheduler {
	return &InventoryCheckScheduler{
		watchdog: watchdog,
		interval: interval,
		logger:   log.WithComponent("inventory-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine.
// The first check runs after one full interval. A scheduler starts once.
func (s *InventoryCheckScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done

	go func() {
		defer close(done)
		s.logger.Info().Dur("interval", s.interval).Msg("inventory check scheduler started")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("inventory check scheduler stopped")
				return
			case <-ticker.C:
				s.runCheckCycle(ctx)
			}
		}
	}()
	return nil
}

// Stop stops the scheduler and waits for a running check to finish
func (s *InventoryCheckScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *InventoryCheckScheduler) runCheckCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("inventory check panicked")
		}
	}()

	result := s.watchdog.RunCheck(ctx)
	s.logger.Debug().
		Str("state", string(result.State)).
		Dur("duration", result.Duration).
		Msg("inventory check cycle finished")
}
