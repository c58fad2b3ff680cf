package core

// scheduler.go runs periodic upload-history maintenance. A failed prune is
// logged and retried on the next tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls history pruning.
type RetentionConfig struct {
	Retention     time.Duration // events older than this are deleted
	CheckInterval time.Duration // how often to prune
}

// StartHistoryPruner prunes once immediately and then every CheckInterval
// until ctx is cancelled. It blocks, so run it in its own goroutine. A zero
// Retention disables pruning.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	if cfg.Retention <= 0 {
		slog.Info("history pruning disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}
	slog.Info("history pruner started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.pruneHistory(ctx, cfg.Retention)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg.Retention)
		}
	}
}

func (s *Service) pruneHistory(ctx context.Context, retention time.Duration) {
	start := time.Now()
	removed, err := s.history.Prune(ctx, s.now().Add(-retention))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned upload history",
		"events_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
