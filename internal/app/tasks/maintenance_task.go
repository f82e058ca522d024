package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// newDatabaseMaintenanceTask drops expired search cache rows and then
// compacts the database. A failed purge does not skip compaction; both
// failures are reported together.
func newDatabaseMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", DatabaseMaintenance)

	return func(ctx context.Context) error {
		started := time.Now()

		var purgeErr error
		deleted, err := deps.Store.PurgeExpiredSearchCache(ctx, started)
		if err != nil {
			log.ErrorContext(ctx, "Search cache purge failed", "error", err)
			purgeErr = fmt.Errorf("purge search cache: %w", err)
		}

		var compactErr error
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database compaction failed", "error", err)
			compactErr = fmt.Errorf("compact database: %w", err)
		}

		if err := errors.Join(purgeErr, compactErr); err != nil {
			return err
		}

		log.InfoContext(ctx, "Database maintenance finished",
			"expired_searches", deleted,
			"duration", time.Since(started))
		return nil
	}
}
