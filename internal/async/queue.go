package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one card image waiting to be scanned for a user.
type Job struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Processor handles a single job. Implementations must be safe for concurrent use.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

// Result reports how a job ended.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) error
}
