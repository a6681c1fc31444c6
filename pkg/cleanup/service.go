// Package cleanup provides data retention for the job queue.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/loglens/loglens/pkg/config"
	"github.com/loglens/loglens/pkg/queue"
)

// JobPruner deletes finished jobs past their retention window.
type JobPruner interface {
	PruneJobs(ctx context.Context, status string, olderThan time.Duration) (int64, error)
}

// Service periodically enforces retention policies:
//   - Removes completed jobs past their retention window
//   - Removes failed jobs past their (longer) retention window
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	jobs   JobPruner
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, jobs JobPruner, logger *slog.Logger) *Service {
	if jobs == nil {
		panic("cleanup.NewService: jobs must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config: cfg,
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"completed_retention", s.config.CompletedJobRetention,
		"failed_retention", s.config.FailedJobRetention,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.prune(ctx, queue.StatusCompleted, s.config.CompletedJobRetention)
	s.prune(ctx, queue.StatusFailed, s.config.FailedJobRetention)
}

func (s *Service) prune(ctx context.Context, status string, retention time.Duration) {
	count, err := s.jobs.PruneJobs(ctx, status, retention)
	if err != nil {
		s.logger.Error("Retention: job prune failed", "status", status, "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: pruned old jobs", "status", status, "count", count)
	}
}

var _ JobPruner = (*queue.Client)(nil)
