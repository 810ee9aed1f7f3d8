package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shrinkray/internal/identity"
)

// JobStatus represents the lifecycle of a conversion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobRetrying  JobStatus = "retrying"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// Terminal reports whether a job status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobSkipped:
		return true
	default:
		return false
	}
}

// Status represents the lifecycle of a batch session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a session status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// RetryAttempt records one retry decision for auditability.
type RetryAttempt struct {
	Index     int       `json:"index"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
}

// FailureRecord captures one classified failure and the recovery action taken.
// Records are appended, never mutated.
type FailureRecord struct {
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is one conversion unit within a session.
type Job struct {
	ID                string          `json:"id"`
	Identity          identity.ID     `json:"identity"`
	Title             string          `json:"title"`
	CatalogID         string          `json:"catalog_id,omitempty"`
	SourceRef         string          `json:"source_ref"`
	StagedPath        string          `json:"staged_path,omitempty"`
	OutputPath        string          `json:"output_path,omitempty"`
	Status            JobStatus       `json:"status"`
	RetryCount        int             `json:"retry_count"`
	LastErrorCategory string          `json:"last_error_category,omitempty"`
	SourceBytes       int64           `json:"source_bytes"`
	OutputBytes       int64           `json:"output_bytes,omitempty"`
	EstimatedSeconds  float64         `json:"estimated_seconds,omitempty"`
	ProgressFraction  float64         `json:"progress_fraction"`
	Warnings          []string        `json:"warnings,omitempty"`
	Attempts          []RetryAttempt  `json:"attempts,omitempty"`
	Failures          []FailureRecord `json:"failures,omitempty"`
}

// RecordFailure appends a failure record and remembers the category.
func (j *Job) RecordFailure(category, action, message string) {
	j.LastErrorCategory = category
	j.Failures = append(j.Failures, FailureRecord{
		Category:  category,
		Action:    action,
		Attempt:   j.RetryCount,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// RecordAttempt appends a retry attempt audit record.
func (j *Job) RecordAttempt(strategy, outcome string) {
	j.Attempts = append(j.Attempts, RetryAttempt{
		Index:     len(j.Attempts) + 1,
		Strategy:  strategy,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
	})
}

// Counters aggregates session results.
type Counters struct {
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	BytesSaved int64 `json:"bytes_saved"`
}

// Session is one batch execution's durable, resumable state. It is mutated
// only by the orchestrator; the persisted job list preserves submission order
// regardless of completion order.
type Session struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      Status     `json:"status"`
	Jobs        []*Job     `json:"jobs"`
	Counters    Counters   `json:"counters"`
}

// New creates a running session with a fresh identifier.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}
}

// NewJob constructs a pending job for the given identity.
func NewJob(id identity.ID, title, sourceRef, catalogID string, sourceBytes int64) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Identity:    id,
		Title:       strings.TrimSpace(title),
		CatalogID:   catalogID,
		SourceRef:   sourceRef,
		Status:      JobPending,
		SourceBytes: sourceBytes,
	}
}

var validTransitions = map[Status][]Status{
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusRunning, StatusCompleted, StatusFailed, StatusCancelled},
}

// Transition moves the session to a new status, rejecting transitions out of
// terminal states.
func (s *Session) Transition(to Status) error {
	if s.Status == to {
		return nil
	}
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			if to.Terminal() {
				now := time.Now().UTC()
				s.CompletedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("session %s: invalid transition %s -> %s", s.ID, s.Status, to)
}

// JobByIdentity returns the first job carrying the given identity.
func (s *Session) JobByIdentity(id identity.ID) (*Job, bool) {
	for _, job := range s.Jobs {
		if job.Identity == id {
			return job, true
		}
	}
	return nil, false
}

// PendingJobs returns jobs that have not reached a terminal state, in
// submission order. Jobs checkpointed as Running or Retrying are included
// because a crash can strand them mid-flight.
func (s *Session) PendingJobs() []*Job {
	var pending []*Job
	for _, job := range s.Jobs {
		if !job.Status.Terminal() {
			pending = append(pending, job)
		}
	}
	return pending
}

// FailedJobs returns terminally failed jobs in submission order.
func (s *Session) FailedJobs() []*Job {
	var failed []*Job
	for _, job := range s.Jobs {
		if job.Status == JobFailed {
			failed = append(failed, job)
		}
	}
	return failed
}

// RecomputeCounters rebuilds the aggregate counters from job states.
func (s *Session) RecomputeCounters() {
	counters := Counters{}
	for _, job := range s.Jobs {
		switch job.Status {
		case JobSucceeded:
			counters.Succeeded++
			if job.OutputBytes > 0 && job.SourceBytes > job.OutputBytes {
				counters.BytesSaved += job.SourceBytes - job.OutputBytes
			}
		case JobFailed:
			counters.Failed++
		case JobSkipped:
			counters.Skipped++
		}
	}
	s.Counters = counters
}
