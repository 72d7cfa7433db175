package sqlite

import (
	"context"
	"log/slog"
	"time"
)

const optimizeInterval = time.Hour

// startDatabaseOptimizer runs PRAGMA optimize on start and then every optimizeInterval until ctx is done.
// See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) startDatabaseOptimizer(ctx context.Context) {
	pragma := "PRAGMA optimize = 0x10002;"
	for {
		start := time.Now()
		_, err := db.ReadWrite.ExecContext(ctx, pragma)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize database", slog.Any("error", err))
		default:
			db.logger.LogAttrs(ctx, slog.LevelDebug, "optimized database",
				slog.Duration("duration", time.Since(start)))
		}
		pragma = "PRAGMA optimize;"

		select {
		case <-ctx.Done():
			return
		case <-time.After(optimizeInterval):
		}
	}
}
