package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "postbot/pkg/logx"
)

// Store is the schedule persistence API consumed by the scanner and the
// admin surface.
type Store interface {
	Create(ctx context.Context, s *Schedule) error
	FindByID(ctx context.Context, id string) (*Schedule, error)

	// FindDue returns active schedules whose NextRunAt has elapsed at `now`,
	// ordered by NextRunAt ascending.
	FindDue(ctx context.Context, now time.Time) ([]*Schedule, error)

	// FindUninitialized returns active schedules that have never had a next
	// run computed (NextRunAt is null).
	FindUninitialized(ctx context.Context) ([]*Schedule, error)

	// UpdateNextRunAt persists the claim. The stored value is the next
	// unvisited occurrence.
	UpdateNextRunAt(ctx context.Context, id string, ts time.Time) error

	UpdateSpec(ctx context.Context, id, cronExpression, timezone string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Schedule, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
