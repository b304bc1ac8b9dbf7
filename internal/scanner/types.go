package scanner

import (
	"time"
)

// Config controls the due-schedule scanner.
type Config struct {
	// Interval between ticks. Sub-minute scheduling is out of scope; the
	// default matches cron's minute granularity.
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

// JobQueue is the slice of the dispatch queue the scanner needs.
type JobQueue interface {
	SchedulePost(scheduleID string, when time.Time) error
	CancelPost(scheduleID string) bool
}

// ClaimEvent is published on the bus when a due schedule is claimed.
type ClaimEvent struct {
	ScheduleID string    `json:"schedule_id"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running    bool
	Interval   time.Duration
	LastTickAt time.Time
	Ticks      uint64
	Claimed    uint64
	Skipped    uint64
}
