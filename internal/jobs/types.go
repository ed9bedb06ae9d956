package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

// JobTypeSyncSnapshot mirrors the persisted store to object storage.
const JobTypeSyncSnapshot JobType = "sync_snapshot"

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// SyncJob asks the worker to export the store and push it to the remote
// mirror. Reason records which mutating operation triggered it; syncs are
// idempotent, so collapsed or repeated jobs are harmless.
type SyncJob struct {
	JobID string `json:"job_id"`

	// Reason is the mutating operation that triggered the sync
	// (import, assign_category, deduplicate, save_mapping).
	Reason string `json:"reason"`

	// Username is the user whose action triggered the sync, for tracing.
	Username string `json:"username,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SyncJob) GetID() string { return j.JobID }

// GetType implements the Job interface.
func (j *SyncJob) GetType() JobType { return JobTypeSyncSnapshot }

// GetStatus implements the Job interface.
func (j *SyncJob) GetStatus() JobStatus { return j.Status }

// Publisher publishes jobs to a queue. The mutating request path only ever
// talks to this; push failures never propagate back to the user action.
type Publisher interface {
	PublishSync(ctx context.Context, job *SyncJob) error
	Close() error
}

// Consumer consumes jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error requeues the job until its
// retry budget runs out.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for observability.
type JobStore interface {
	SaveJob(ctx context.Context, job *SyncJob) error
	GetJob(ctx context.Context, jobID string) (*SyncJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Reason string
	Status JobStatus
	Limit  int
	Offset int
}
