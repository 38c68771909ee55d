// Package sweeper periodically drops expired state from in-memory stores.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Task removes whatever has expired as of now and reports how many entries
// it dropped.
type Task struct {
	Name  string
	Sweep func(ctx context.Context, now time.Time) (int, error)
}

// Run sweeps every task once per interval until ctx is cancelled. A failing
// task is logged and retried on the next tick.
func Run(ctx context.Context, interval time.Duration, logger *slog.Logger, tasks ...Task) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			Once(ctx, now, logger, tasks...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Once runs every task a single time.
func Once(ctx context.Context, now time.Time, logger *slog.Logger, tasks ...Task) {
	for _, task := range tasks {
		removed, err := task.Sweep(ctx, now)
		if err != nil {
			logger.WarnContext(ctx, "sweep failed", "task", task.Name, "error", err)
			continue
		}
		if removed > 0 {
			logger.DebugContext(ctx, "swept expired entries", "task", task.Name, "removed", removed)
		}
	}
}
