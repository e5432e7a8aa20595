package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/user/loungeremote/pkg/lounge"
)

// JobStatus represents the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Job is one command queued for a screen.
type Job struct {
	ID        string
	ScreenID  string
	Command   lounge.Command
	Source    string
	Status    JobStatus
	Attempts  int
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Err       error

	// Ctx is set by the queue before the processor runs.
	Ctx context.Context

	// OnComplete, if set, receives the final error (nil on success).
	OnComplete func(err error)
}

// NewJob creates a Job in the Queued state.
func NewJob(screenID string, cmd lounge.Command, source string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		ScreenID:  screenID,
		Command:   cmd,
		Source:    source,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

// JobOption configures optional behavior on a Job.
type JobOption func(*Job)

// WithOnComplete sets a callback invoked when the job finishes.
func WithOnComplete(fn func(error)) JobOption {
	return func(j *Job) { j.OnComplete = fn }
}
