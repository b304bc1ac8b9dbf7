package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a schedule id does not exist.
	ErrNotFound = errors.New("store: schedule not found")
)

// Config configures schedule persistence.
//
// Driver values:
//   - "sqlite": SQLite database file (default for real deployments)
//   - "memory": in-process map, lost on restart (tests, dry runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Schedule is a recurring posting instruction.
//
// NextRunAt is nil until the scanner's startup initialization computes the
// first occurrence. Once set it always points at the next unvisited
// occurrence; the scanner advances it before dispatching (the claim).
type Schedule struct {
	ID             string
	Name           string
	Type           string // e.g. "post", "digest"; opaque to the core
	CronExpression string
	Timezone       string
	IsActive       bool
	NextRunAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	cp := *s
	if s.NextRunAt != nil {
		t := *s.NextRunAt
		cp.NextRunAt = &t
	}
	return &cp
}
