// Copyright 2025 James Ross
package runner

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/coppersystems/pipelined/internal/breaker"
	"github.com/coppersystems/pipelined/internal/config"
	"github.com/coppersystems/pipelined/internal/dispatcher"
	"github.com/coppersystems/pipelined/internal/itemdb"
	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/obs"
	"github.com/coppersystems/pipelined/internal/objectstore"
	"github.com/coppersystems/pipelined/internal/pipeline"
	"github.com/coppersystems/pipelined/internal/piper"
	"github.com/coppersystems/pipelined/internal/queue"
)

// Runner owns the admission loop: claiming queued jobs up to
// config.Runner.ParallelJobs at a time, building each one's pipeline,
// running it to completion, and committing or discarding its transaction.
type Runner struct {
	cfg *config.Runner
	q   *queue.Queue
	d   *dispatcher.Dispatcher

	objectStore objectstore.Client
	itemDB      itemdb.Client
	cb          *breaker.CircuitBreaker

	pool *Pool
	log  *zap.Logger

	admission chan struct{} // bounds concurrently admitted jobs to ParallelJobs
}

// New builds a Runner. The optional wake channel is given to Run, not
// here.
func New(cfg *config.Runner, q *queue.Queue, d *dispatcher.Dispatcher, objStore objectstore.Client, db itemdb.Client, cb *breaker.CircuitBreaker, log *zap.Logger) *Runner {
	return &Runner{
		cfg:         cfg,
		q:           q,
		d:           d,
		objectStore: objStore,
		itemDB:      db,
		cb:          cb,
		pool:        NewPool(cfg.ParallelJobs * cfg.ThreadsPerJob),
		log:         log,
		admission:   make(chan struct{}, cfg.ParallelJobs),
	}
}

// Run blocks, claiming and executing jobs until ctx is canceled. wake is an
// optional channel a notify subscriber sends job ids on to wake the loop
// immediately after Add; it may be nil.
func (r *Runner) Run(ctx context.Context, wake <-chan string) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	defer r.pool.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.admitAvailable(ctx)
		case <-wake:
			r.admitAvailable(ctx)
		}
	}
}

// admitAvailable claims and launches as many jobs as there is admission
// capacity for, without blocking past the first claim that finds nothing
// queued.
func (r *Runner) admitAvailable(ctx context.Context) {
	for {
		select {
		case r.admission <- struct{}{}:
		default:
			return // at ParallelJobs capacity
		}

		claimCtx, span := obs.StartClaimSpan(ctx)
		job, err := r.q.ClaimNextQueued(claimCtx)
		span.End()
		if err != nil {
			r.log.Error("claim failed", obs.Err(err))
			<-r.admission
			return
		}
		if job == nil {
			<-r.admission
			return
		}

		obs.JobsClaimed.Inc()
		obs.RunnerActiveJobs.Inc()
		go func() {
			defer func() {
				obs.RunnerActiveJobs.Dec()
				<-r.admission
			}()
			r.runJob(ctx, job)
		}()
	}
}

// runJob builds, runs, and finalizes one claimed job against the queue.
func (r *Runner) runJob(ctx context.Context, claimed *queue.ClaimedJob) {
	jobCtx, span := obs.ContextWithJobSpan(ctx, claimed.JobID, "")
	defer span.End()

	doc, err := pipeline.ParseJSON(claimed.PipelineJSON)
	if err != nil {
		r.failBuild(jobCtx, claimed.JobID, "invalid pipeline document: "+err.Error())
		return
	}

	var inputs map[string]piper.PipeData
	if err := json.Unmarshal(claimed.InputsJSON, &inputs); err != nil {
		r.failBuild(jobCtx, claimed.JobID, "invalid inputs document: "+err.Error())
		return
	}

	g, err := pipeline.Build(r.d, &dispatcher.BuildContext{Inputs: inputs}, doc)
	if err != nil {
		r.failBuild(jobCtx, claimed.JobID, err.Error())
		return
	}

	jc := jobctx.New(jobCtx, claimed.JobID, claimed.OwnerID, inputs, r.objectStore, r.itemDB, r.cfg.BlobFragmentSize, r.cfg.StreamChannelCapacity)

	eng := newEngine(g, jc, r.pool, r.cfg.ThreadsPerJob)
	if err := eng.run(jobCtx); err != nil {
		obs.RecordError(jobCtx, err)
		obs.JobsFailed.Inc()
		r.log.Warn("job failed", obs.String("job_id", claimed.JobID), obs.Err(err))
		if markErr := r.q.MarkFailed(ctx, claimed.JobID); markErr != nil {
			r.log.Error("mark failed failed", obs.String("job_id", claimed.JobID), obs.Err(markErr))
		}
		return
	}

	if !r.cb.Allow() {
		obs.JobsFailed.Inc()
		r.log.Warn("job failed: item database circuit open", obs.String("job_id", claimed.JobID))
		if markErr := r.q.MarkFailed(ctx, claimed.JobID); markErr != nil {
			r.log.Error("mark failed failed", obs.String("job_id", claimed.JobID), obs.Err(markErr))
		}
		return
	}

	err = r.itemDB.ApplyTransaction(jobCtx, jc.Transaction())
	r.cb.Record(err == nil)
	if err != nil {
		obs.RecordError(jobCtx, err)
		obs.JobsFailed.Inc()
		r.log.Warn("transaction apply failed", obs.String("job_id", claimed.JobID), obs.Err(err))
		if markErr := r.q.MarkFailed(ctx, claimed.JobID); markErr != nil {
			r.log.Error("mark failed failed", obs.String("job_id", claimed.JobID), obs.Err(markErr))
		}
		return
	}

	obs.SetSpanSuccess(jobCtx)
	obs.JobsSucceeded.Inc()
	if err := r.q.MarkSuccess(ctx, claimed.JobID); err != nil {
		r.log.Error("mark success failed", obs.String("job_id", claimed.JobID), obs.Err(err))
	}
}

func (r *Runner) failBuild(ctx context.Context, jobID, message string) {
	obs.JobsBuildError.Inc()
	r.log.Warn("job build failed", obs.String("job_id", jobID), obs.String("reason", message))
	if err := r.q.MarkBuildError(ctx, jobID, message); err != nil {
		r.log.Error("mark build error failed", obs.String("job_id", jobID), obs.Err(err))
	}
}
