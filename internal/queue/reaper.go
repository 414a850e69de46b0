// Copyright 2025 James Ross
package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/coppersystems/pipelined/internal/obs"
)

// Reaper periodically requeues Running jobs whose started_at predates the
// staleness window, recovering from a runner process that died mid-job
// without leaving its claimed rows stuck forever. Requeueing rather than
// failing is safe here since a job's transaction only ever commits at the
// very end of a successful run: a dead process never partially applied one.
type Reaper struct {
	q       *Queue
	timeout time.Duration
	log     *zap.Logger
}

// NewReaper builds a Reaper that requeues Running rows older than timeout.
func NewReaper(q *Queue, timeout time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{q: q, timeout: timeout, log: log}
}

// Start schedules the reaper's scan on cronExpr (e.g. "@every 1m") and
// returns the running cron.Cron so the caller can Stop it on shutdown.
func (r *Reaper) Start(ctx context.Context, cronExpr string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(cronExpr, func() { r.scanOnce(ctx) })
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (r *Reaper) scanOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.timeout)
	ids, err := r.q.StaleRunning(ctx, cutoff)
	if err != nil {
		r.log.Warn("reaper scan failed", obs.Err(err))
		return
	}
	for _, id := range ids {
		if err := r.q.RequeueStale(ctx, id); err != nil {
			r.log.Error("reaper requeue failed", obs.String("job_id", id), obs.Err(err))
			continue
		}
		obs.JobsRequeuedStale.Inc()
		r.log.Warn("requeued stale running job", obs.String("job_id", id))
	}
}
