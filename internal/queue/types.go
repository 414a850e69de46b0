// Copyright 2025 James Ross
package queue

import "time"

// JobState is the lifecycle state of one row in pipeline_jobs.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateRunning    JobState = "running"
	StateSuccess    JobState = "success"
	StateFailed     JobState = "failed"
	StateBuildError JobState = "build_error"
)

// JobShort is the summary projection returned by GetShort/ListByUser; it
// omits the pipeline and inputs JSON blobs, which callers fetch separately
// when they need the full document.
type JobShort struct {
	JobID             string
	OwnerID           int64
	State             JobState
	BuildErrorMessage string
	CreatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
}

// Counts is the aggregate state breakdown returned by Counts, used to
// populate obs.QueueDepth.
type Counts struct {
	Queued     int
	Running    int
	Success    int
	Failed     int
	BuildError int
}
