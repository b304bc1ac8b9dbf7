package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"postbot/internal/cron"
	"postbot/internal/eventbus"
	"postbot/internal/store"
	logx "postbot/pkg/logx"
)

// tick processes every schedule due at `now`. A failure in one schedule is
// reported and never blocks the rest of the batch.
func (s *Service) tick(ctx context.Context, now time.Time) {
	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		s.rep.Failure("scanner.tick", fmt.Errorf("find due schedules: %w", err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Debug("tick", logx.Int("due", len(due)), logx.Time("now", now))

	for _, sched := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.claim(ctx, sched, now); err != nil {
			atomic.AddUint64(&s.skipped, 1)
			s.rep.Failure("scanner.claim", err,
				logx.String("schedule", sched.ID), logx.String("cron", sched.CronExpression))
			continue
		}
		atomic.AddUint64(&s.claimed, 1)
	}
}

// claim advances the schedule's next-run timestamp, then submits the job.
// The write MUST precede the submission: once persisted, this occurrence can
// never be re-selected, so a dispatch failure costs one post, not a double
// post.
func (s *Service) claim(ctx context.Context, sched *store.Schedule, now time.Time) error {
	next, err := cron.Next(sched.CronExpression, sched.Timezone, now)
	if err != nil {
		return fmt.Errorf("compute next occurrence: %w", err)
	}
	if err := s.store.UpdateNextRunAt(ctx, sched.ID, next); err != nil {
		return fmt.Errorf("persist claim: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: "scanner.claimed",
			Data: ClaimEvent{ScheduleID: sched.ID, NextRunAt: next},
		})
	}
	if err := s.queue.SchedulePost(sched.ID, now); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	s.log.Debug("schedule claimed",
		logx.String("schedule", sched.ID), logx.Time("next_run_at", next))
	return nil
}

// InitializeNextRunTimes seeds every active schedule that has never had a
// next run computed. Seeded schedules get a job for their first FUTURE
// occurrence; they do not fire immediately.
func (s *Service) InitializeNextRunTimes(ctx context.Context) error {
	now := time.Now()
	list, err := s.store.FindUninitialized(ctx)
	if err != nil {
		return fmt.Errorf("find uninitialized schedules: %w", err)
	}

	for _, sched := range list {
		next, err := cron.Next(sched.CronExpression, sched.Timezone, now)
		if err != nil {
			s.rep.Failure("scanner.init", fmt.Errorf("compute first occurrence: %w", err),
				logx.String("schedule", sched.ID), logx.String("cron", sched.CronExpression))
			continue
		}
		if err := s.store.UpdateNextRunAt(ctx, sched.ID, next); err != nil {
			s.rep.Failure("scanner.init", fmt.Errorf("persist first occurrence: %w", err),
				logx.String("schedule", sched.ID))
			continue
		}
		if err := s.queue.SchedulePost(sched.ID, next); err != nil {
			s.rep.Failure("scanner.init", fmt.Errorf("submit seeded job: %w", err),
				logx.String("schedule", sched.ID))
			continue
		}
		s.log.Info("schedule initialized",
			logx.String("schedule", sched.ID), logx.Time("next_run_at", next))
	}
	return nil
}

// Reschedule recomputes a schedule after an external edit (cron/timezone
// change, reactivation, manual nudge). Any pending job is cancelled first;
// if the schedule is gone or inactive nothing is resubmitted.
//
// Safe to call concurrently with an in-flight tick for the same schedule:
// both paths write a next occurrence computed from their own "now", and
// last-writer-wins is acceptable for a user-driven edit.
func (s *Service) Reschedule(ctx context.Context, scheduleID string) error {
	s.queue.CancelPost(scheduleID)

	sched, err := s.store.FindByID(ctx, scheduleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	if !sched.IsActive {
		return nil
	}

	now := time.Now()
	next, err := cron.Next(sched.CronExpression, sched.Timezone, now)
	if err != nil {
		s.rep.Failure("scanner.reschedule", err,
			logx.String("schedule", sched.ID), logx.String("cron", sched.CronExpression))
		return fmt.Errorf("compute next occurrence: %w", err)
	}
	if err := s.store.UpdateNextRunAt(ctx, scheduleID, next); err != nil {
		return fmt.Errorf("persist next occurrence: %w", err)
	}
	if err := s.queue.SchedulePost(scheduleID, next); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	s.log.Info("schedule rescheduled",
		logx.String("schedule", scheduleID), logx.Time("next_run_at", next))
	return nil
}
