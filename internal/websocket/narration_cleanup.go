package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/repositories"
)

// DefaultCleanupInterval is used when no interval is configured
const DefaultCleanupInterval = 30 * time.Minute

// NarrationCleanupService expires stored narrations in the background
type NarrationCleanupService struct {
	narrationRepo repositories.NarrationRepository
	interval      time.Duration
	logger        *zap.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewNarrationCleanupService creates a new narration cleanup service
func NewNarrationCleanupService(narrationRepo repositories.NarrationRepository, interval time.Duration, logger *zap.Logger) *NarrationCleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &NarrationCleanupService{
		narrationRepo: narrationRepo,
		interval:      interval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *NarrationCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Narration cleanup service started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service and waits for a running cleanup to finish
func (s *NarrationCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.logger.Info("Narration cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *NarrationCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup(time.Now())
		}
	}
}

// RunCleanup expires every narration past its expiry at now
func (s *NarrationCleanupService) RunCleanup(now time.Time) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logger.Debug("Starting narration cleanup")

	count, err := s.narrationRepo.ExpireNarrations(ctx, now)
	if err != nil {
		s.logger.Error("Failed to expire narrations", zap.Error(err))
		return 0
	}

	s.logger.Info("Narration cleanup completed", zap.Int("expired", count))
	return count
}
