package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/punquote/internal/config"
)

// newMessageCachePruneTask creates a task that drops cached messages not
// updated within the configured retention. Pruned messages can no longer be
// quoted.
func newMessageCachePruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "message_cache_prune")

	return func(ctx context.Context) error {
		retention := config.DefaultCacheRetention
		if deps.Config != nil && deps.Config.Cache.Retention > 0 {
			retention = deps.Config.Cache.Retention
		}
		cutoff := deps.now().Add(-retention)

		startTime := time.Now()
		deleted, err := deps.Store.DeleteMessagesBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Message cache prune failed", "error", err, "cutoff", cutoff)
			return fmt.Errorf("message cache prune failed: %w", err)
		}

		log.InfoContext(ctx, "Pruned message cache",
			"deleted", deleted,
			"cutoff", cutoff,
			"duration", time.Since(startTime))
		return nil
	}
}
