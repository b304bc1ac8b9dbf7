package dispatch

import (
	"context"
	"errors"
	"time"

	"postbot/internal/outcome"
)

var (
	ErrStopped   = errors.New("dispatch: queue is stopped")
	ErrQueueFull = errors.New("dispatch: worker queue is full")
)

// Config controls the dispatch queue.
type Config struct {
	Workers   int
	QueueSize int

	// ExecTimeout bounds one Executor call. 0 applies the default.
	ExecTimeout time.Duration

	// Retry policy for retryable failures.
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 60 * time.Second
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 3600 * time.Second
	}
	return c
}

// Job is one concrete, claimed occurrence awaiting execution.
type Job struct {
	ID           string
	ScheduleID   string
	ScheduledFor time.Time
	Attempt      int
	MaxAttempts  int

	// ver ties the job to its pending-table entry; a stale ver means the job
	// was cancelled or superseded after it was queued.
	ver uint64
}

// Executor performs the actual scheduled action. The queue does not know
// what that is; it only reads the outcome's code.
type Executor interface {
	Execute(ctx context.Context, scheduleID string) outcome.Outcome
}

// JobEvent is emitted on the event bus for job lifecycle events.
type JobEvent struct {
	ID         string       `json:"id"`
	ScheduleID string       `json:"schedule_id"`
	Attempt    int          `json:"attempt"`
	Code       outcome.Code `json:"code,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running  bool
	Workers  int
	QueueLen int
	QueueCap int
	Pending  int

	Delivered uint64
	Terminal  uint64
	Retried   uint64
	Exhausted uint64
	Cancelled uint64
	Dropped   uint64
}
