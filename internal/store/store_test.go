package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "postbot/pkg/logx"
)

// Both drivers must satisfy the same behavior; run the suite against each.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "postbot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return v
}

func TestFindDueSelectsOnlyElapsedActive(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := ts(t, "2024-03-10T08:00:00Z")
			past := now.Add(-2 * time.Minute)
			future := now.Add(30 * time.Minute)

			mk := func(id string, active bool, next *time.Time) {
				s := &Schedule{
					ID: id, Name: id, Type: "post",
					CronExpression: "0 9 * * *", Timezone: "Europe/Rome",
					IsActive: active, NextRunAt: next,
				}
				if err := st.Create(ctx, s); err != nil {
					t.Fatalf("create %s: %v", id, err)
				}
			}
			mk("due-early", true, &past)
			mk("due-now", true, &now)
			mk("future", true, &future)
			mk("inactive", false, &past)
			mk("uninit", true, nil)

			due, err := st.FindDue(ctx, now)
			if err != nil {
				t.Fatalf("FindDue: %v", err)
			}
			if len(due) != 2 {
				t.Fatalf("FindDue returned %d schedules, want 2", len(due))
			}
			if due[0].ID != "due-early" || due[1].ID != "due-now" {
				t.Fatalf("FindDue order = [%s %s], want [due-early due-now]", due[0].ID, due[1].ID)
			}

			uninit, err := st.FindUninitialized(ctx)
			if err != nil {
				t.Fatalf("FindUninitialized: %v", err)
			}
			if len(uninit) != 1 || uninit[0].ID != "uninit" {
				t.Fatalf("FindUninitialized = %v, want [uninit]", uninit)
			}
		})
	}
}

func TestUpdateNextRunAtRoundTrip(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.Create(ctx, &Schedule{
				ID: "s1", Name: "daily", Type: "post",
				CronExpression: "0 9 * * *", Timezone: "UTC", IsActive: true,
			}); err != nil {
				t.Fatalf("create: %v", err)
			}

			next := ts(t, "2024-03-10T09:00:00Z")
			if err := st.UpdateNextRunAt(ctx, "s1", next); err != nil {
				t.Fatalf("UpdateNextRunAt: %v", err)
			}

			got, err := st.FindByID(ctx, "s1")
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
				t.Fatalf("NextRunAt = %v, want %v", got.NextRunAt, next)
			}

			if err := st.UpdateNextRunAt(ctx, "missing", next); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpdateNextRunAt(missing) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSetActiveAndSpecEdits(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			next := ts(t, "2024-03-10T09:00:00Z")
			if err := st.Create(ctx, &Schedule{
				ID: "s1", Name: "daily", Type: "post",
				CronExpression: "0 9 * * *", Timezone: "UTC",
				IsActive: true, NextRunAt: &next,
			}); err != nil {
				t.Fatalf("create: %v", err)
			}

			if err := st.SetActive(ctx, "s1", false); err != nil {
				t.Fatalf("SetActive: %v", err)
			}
			due, err := st.FindDue(ctx, next.Add(time.Hour))
			if err != nil {
				t.Fatalf("FindDue: %v", err)
			}
			if len(due) != 0 {
				t.Fatalf("inactive schedule still selected: %v", due)
			}

			if err := st.UpdateSpec(ctx, "s1", "30 8 * * 1", "Europe/Rome"); err != nil {
				t.Fatalf("UpdateSpec: %v", err)
			}
			got, err := st.FindByID(ctx, "s1")
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if got.CronExpression != "30 8 * * 1" || got.Timezone != "Europe/Rome" {
				t.Fatalf("spec edit not persisted: %+v", got)
			}
		})
	}
}

func TestFindByIDMissing(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			_, err := st.FindByID(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}
