// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"github.com/coppersystems/pipelined/internal/config"
	"go.uber.org/zap"
)

// StartQueueDepthUpdater samples per-state job counts and updates a gauge.
// counts is typically queue.Queue.Counts, injected to avoid obs depending on
// the queue package.
func StartQueueDepthUpdater(ctx context.Context, cfg *config.Config, counts func(context.Context) (map[string]int, error), log *zap.Logger) {
	interval := 2 * time.Second
	if cfg.Observability.QueueSampleInterval > 0 {
		interval = cfg.Observability.QueueSampleInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				byState, err := counts(ctx)
				if err != nil {
					log.Debug("queue depth poll error", Err(err))
					continue
				}
				for state, n := range byState {
					QueueDepth.WithLabelValues(state).Set(float64(n))
				}
			}
		}
	}()
}
