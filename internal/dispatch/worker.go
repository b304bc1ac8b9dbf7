package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"postbot/internal/outcome"
	logx "postbot/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan Job, idx int) {
	log := s.log.With(logx.Int("worker", idx))
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case job := <-queue:
			if !s.takePending(job) {
				// Cancelled or superseded while waiting in the channel.
				continue
			}
			s.process(ctx, job, log)
		}
	}
}

func (s *Service) process(ctx context.Context, job Job, log logx.Logger) {
	start := time.Now()
	s.publish("dispatch.started", JobEvent{ID: job.ID, ScheduleID: job.ScheduleID, Attempt: job.Attempt})

	out := s.execute(ctx, job.ScheduleID)
	dur := time.Since(start)

	if out.OK {
		atomic.AddUint64(&s.delivered, 1)
		s.publish("dispatch.completed", JobEvent{ID: job.ID, ScheduleID: job.ScheduleID, Attempt: job.Attempt})
		log.Debug("job completed",
			logx.String("schedule", job.ScheduleID), logx.Int("attempt", job.Attempt), logx.Duration("dur", dur))
		return
	}

	ev := JobEvent{ID: job.ID, ScheduleID: job.ScheduleID, Attempt: job.Attempt, Code: out.Code, Error: out.Message}

	if !out.Code.Retryable() {
		atomic.AddUint64(&s.terminal, 1)
		s.publish("dispatch.failed", ev)
		s.rep.Failure("dispatch.terminal", failureErr(out),
			logx.String("schedule", job.ScheduleID), logx.String("code", string(out.Code)))
		log.Warn("job failed: terminal",
			logx.String("schedule", job.ScheduleID), logx.String("code", string(out.Code)),
			logx.Int("attempt", job.Attempt))
		return
	}

	if job.Attempt >= job.MaxAttempts {
		atomic.AddUint64(&s.exhausted, 1)
		s.publish("dispatch.exhausted", ev)
		s.rep.Failure("dispatch.exhausted", failureErr(out),
			logx.String("schedule", job.ScheduleID), logx.String("code", string(out.Code)),
			logx.Int("attempts", job.Attempt))
		log.Warn("job failed: retries exhausted",
			logx.String("schedule", job.ScheduleID), logx.String("code", string(out.Code)),
			logx.Int("attempts", job.Attempt))
		return
	}

	delay := backoffDelay(s.cfg, job.Attempt)
	job.Attempt++
	job.ScheduledFor = time.Now().Add(delay)
	atomic.AddUint64(&s.retried, 1)
	s.publish("dispatch.retry", ev)
	log.Debug("job retry scheduled",
		logx.String("schedule", job.ScheduleID), logx.String("code", string(out.Code)),
		logx.Int("attempt", job.Attempt), logx.Duration("delay", delay))
	s.arm(job)
}

// execute runs one Executor call under the configured timeout.
// Panics become retryable failures so one bad publish can't kill a worker.
func (s *Service) execute(ctx context.Context, scheduleID string) (out outcome.Outcome) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("executor panic",
				logx.String("schedule", scheduleID), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			out = outcome.Failuref(outcome.CodeTelegramAPI, "executor panic: %v", r)
		}
	}()

	out = s.exec.Execute(runCtx, scheduleID)
	if !out.OK && out.Code == "" {
		// An executor that forgets to classify still gets retry semantics.
		out.Code = outcome.CodeTelegramAPI
	}
	if !out.OK && errors.Is(runCtx.Err(), context.DeadlineExceeded) && out.Message == "" {
		out.Message = "execution timed out"
	}
	return out
}

func failureErr(out outcome.Outcome) error {
	return fmt.Errorf("%s: %s", out.Code, out.Message)
}
