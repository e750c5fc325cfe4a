package store

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupWorker starts a background goroutine that periodically
// removes sessions idle longer than ttl. It stops when ctx is canceled.
func StartCleanupWorker(ctx context.Context, repo Repository, ttl, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session cleanup worker stopped")
				return
			case <-ticker.C:
				removed, err := repo.CleanupExpiredSessions(ctx, ttl)
				if err != nil {
					slog.Warn("Session cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Session cleanup removed expired sessions", "count", removed, "ttl", ttl)
				}
			}
		}
	}()
}
