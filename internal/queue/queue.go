// Copyright 2025 James Ross

// Package queue implements the durable job queue backing the pipeline
// engine: a Postgres table claimed with row-level locks so multiple runner
// processes can share one queue safely, plus a Redis pub/sub channel that
// wakes a blocked admission loop the instant a job is added.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/coppersystems/pipelined/internal/obs"
)

// Queue is the durable store of pipeline jobs. All methods are safe for
// concurrent use by multiple runner processes sharing the same Postgres
// database.
type Queue struct {
	db            *sql.DB
	notifyChannel string
	publish       func(ctx context.Context, channel, payload string) error
	log           *zap.Logger
}

// New builds a Queue over an already-open db (see Open). publish is called after every successful
// Add to wake a blocked admission loop; pass nil to disable the
// notification. A publish failure is logged and otherwise ignored: it is a
// pure latency optimization, never a correctness dependency, since
// ClaimNextQueued's polling ticker still makes progress without it.
func New(db *sql.DB, notifyChannel string, publish func(ctx context.Context, channel, payload string) error, log *zap.Logger) *Queue {
	return &Queue{db: db, notifyChannel: notifyChannel, publish: publish, log: log}
}

// Open is a convenience constructor that opens and configures a *sql.DB
// from the given DSN and pool settings.
func Open(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// Add inserts a new queued job. pipelineJSON and inputsJSON are the raw
// wire documents; the queue does not interpret them, only stores and
// returns them to the runner at claim time.
func (q *Queue) Add(ctx context.Context, jobID string, ownerID int64, pipelineJSON, inputsJSON []byte) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO pipeline_jobs (job_id, owner_id, pipeline_json, inputs_json, state, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (job_id) DO NOTHING
	`, jobID, ownerID, pipelineJSON, inputsJSON, StateQueued)
	if err != nil {
		return &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	if n == 0 {
		return &Error{Kind: ErrAlreadyExists, JobID: jobID}
	}

	if q.publish != nil {
		if err := q.publish(ctx, q.notifyChannel, jobID); err != nil && q.log != nil {
			q.log.Warn("queue notify publish failed", obs.String("job_id", jobID), obs.Err(err))
		}
	}
	return nil
}

// ClaimedJob is one job handed to a runner by ClaimNextQueued.
type ClaimedJob struct {
	JobID        string
	OwnerID      int64
	PipelineJSON []byte
	InputsJSON   []byte
}

// ClaimNextQueued locks and claims the oldest queued job, transitioning it
// to Running, or returns (nil, nil) if no job is queued. FOR UPDATE SKIP
// LOCKED lets multiple runner processes poll the same table concurrently
// without blocking on each other's in-flight claim.
func (q *Queue) ClaimNextQueued(ctx context.Context) (*ClaimedJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Error{Kind: ErrDB, Cause: err}
	}
	defer tx.Rollback()

	var job ClaimedJob
	err = tx.QueryRowContext(ctx, `
		SELECT job_id, owner_id, pipeline_json, inputs_json
		FROM pipeline_jobs
		WHERE state = $1
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, StateQueued).Scan(&job.JobID, &job.OwnerID, &job.PipelineJSON, &job.InputsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Kind: ErrDB, Cause: err}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE pipeline_jobs SET state = $1, started_at = now() WHERE job_id = $2
	`, StateRunning, job.JobID); err != nil {
		return nil, &Error{Kind: ErrDB, JobID: job.JobID, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &Error{Kind: ErrDB, JobID: job.JobID, Cause: err}
	}
	return &job, nil
}

func (q *Queue) markTerminal(ctx context.Context, jobID string, state JobState, buildErrorMessage string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET state = $1, build_error_message = $2, finished_at = now()
		WHERE job_id = $3 AND state = $4
	`, state, buildErrorMessage, jobID, StateRunning)
	if err != nil {
		return &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	if n != 1 {
		return &Error{Kind: ErrNotRunning, JobID: jobID}
	}
	return nil
}

// MarkSuccess transitions a Running job to Success.
func (q *Queue) MarkSuccess(ctx context.Context, jobID string) error {
	return q.markTerminal(ctx, jobID, StateSuccess, "")
}

// MarkFailed transitions a Running job to Failed.
func (q *Queue) MarkFailed(ctx context.Context, jobID string) error {
	return q.markTerminal(ctx, jobID, StateFailed, "")
}

// MarkBuildError transitions a Running job to BuildError, recording why the
// pipeline document failed to build.
func (q *Queue) MarkBuildError(ctx context.Context, jobID, message string) error {
	return q.markTerminal(ctx, jobID, StateBuildError, message)
}

// RequeueStale transitions a Running job back to Queued and clears its
// started_at, used by the reaper to recover jobs whose owning
// runner process died mid-execution. It is safe to call on a job another
// runner has already claimed (RowsAffected will be 0) since the caller
// checked started_at before invoking it.
func (q *Queue) RequeueStale(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pipeline_jobs
		SET state = $1, started_at = NULL
		WHERE job_id = $2 AND state = $3
	`, StateQueued, jobID, StateRunning)
	if err != nil {
		return &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	return nil
}

// StaleRunning returns the ids of every Running job whose started_at is
// older than olderThan, for the reaper's scan.
func (q *Queue) StaleRunning(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT job_id FROM pipeline_jobs WHERE state = $1 AND started_at < $2
	`, StateRunning, olderThan)
	if err != nil {
		return nil, &Error{Kind: ErrDB, Cause: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &Error{Kind: ErrDB, Cause: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetShort returns the summary projection of one job.
func (q *Queue) GetShort(ctx context.Context, jobID string) (*JobShort, error) {
	var s JobShort
	err := q.db.QueryRowContext(ctx, `
		SELECT job_id, owner_id, state, build_error_message, created_at, started_at, finished_at
		FROM pipeline_jobs WHERE job_id = $1
	`, jobID).Scan(&s.JobID, &s.OwnerID, &s.State, &s.BuildErrorMessage, &s.CreatedAt, &s.StartedAt, &s.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: ErrNotFound, JobID: jobID}
	}
	if err != nil {
		return nil, &Error{Kind: ErrDB, JobID: jobID, Cause: err}
	}
	return &s, nil
}

// ListByUser returns a page of an owner's jobs, most recent first.
func (q *Queue) ListByUser(ctx context.Context, ownerID int64, limit, offset int) ([]JobShort, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT job_id, owner_id, state, build_error_message, created_at, started_at, finished_at
		FROM pipeline_jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, &Error{Kind: ErrDB, Cause: err}
	}
	defer rows.Close()

	var out []JobShort
	for rows.Next() {
		var s JobShort
		if err := rows.Scan(&s.JobID, &s.OwnerID, &s.State, &s.BuildErrorMessage, &s.CreatedAt, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, &Error{Kind: ErrDB, Cause: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Counts returns the aggregate job count per state.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE state = $1),
			COUNT(*) FILTER (WHERE state = $2),
			COUNT(*) FILTER (WHERE state = $3),
			COUNT(*) FILTER (WHERE state = $4),
			COUNT(*) FILTER (WHERE state = $5)
		FROM pipeline_jobs
	`, StateQueued, StateRunning, StateSuccess, StateFailed, StateBuildError).
		Scan(&c.Queued, &c.Running, &c.Success, &c.Failed, &c.BuildError)
	if err != nil {
		return Counts{}, &Error{Kind: ErrDB, Cause: err}
	}
	return c, nil
}

// Schema is the DDL Queue expects; callers apply it via their own migration
// tooling (this package never runs migrations itself).
const Schema = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	job_id               TEXT PRIMARY KEY,
	owner_id             BIGINT NOT NULL,
	pipeline_json        BYTEA NOT NULL,
	inputs_json          BYTEA NOT NULL,
	state                TEXT NOT NULL,
	build_error_message  TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	started_at           TIMESTAMPTZ,
	finished_at          TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS pipeline_jobs_state_created_idx ON pipeline_jobs (state, created_at);
CREATE INDEX IF NOT EXISTS pipeline_jobs_owner_idx ON pipeline_jobs (owner_id, created_at DESC);
`
