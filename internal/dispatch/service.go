package dispatch

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"postbot/internal/eventbus"
	"postbot/internal/report"
	logx "postbot/pkg/logx"
)

type Service struct {
	cfg  Config
	log  logx.Logger
	bus  eventbus.Bus
	rep  report.Reporter
	exec Executor

	mu      sync.Mutex
	q       chan Job
	stopCh  chan struct{}
	baseCtx context.Context
	wg      sync.WaitGroup
	running bool

	// Pending table: one entry per schedule id, guarded by tmu.
	// An entry with a live timer is a delayed job; an entry without one is
	// already in the worker channel and is validated again at dequeue.
	tmu     sync.Mutex
	pending map[string]*pendingEntry
	verSeq  uint64

	delivered uint64
	terminal  uint64
	retried   uint64
	exhausted uint64
	cancelled uint64
	dropped   uint64
}

type pendingEntry struct {
	ver   uint64
	timer *time.Timer
}

func New(cfg Config, exec Executor, log logx.Logger, bus eventbus.Bus, rep report.Reporter) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if rep == nil {
		rep = report.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log,
		bus:     bus,
		rep:     rep,
		exec:    exec,
		pending: map[string]*pendingEntry{},
	}
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.q = make(chan Job, s.cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.baseCtx = ctx
	s.running = true
	queue := s.q
	stopCh := s.stopCh
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func(idx int) {
			defer s.wg.Done()
			s.worker(ctx, stopCh, queue, idx)
		}(i)
	}
	s.log.Info("dispatch queue started", logx.Int("workers", workers), logx.Int("queue", cap(queue)))
}

// Stop halts the workers and disarms every delayed job. Jobs already being
// executed run to completion; their retries are dropped because the queue is
// no longer running.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.tmu.Lock()
	for id, e := range s.pending {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.pending, id)
	}
	s.tmu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("dispatch queue stopped")
	case <-ctx.Done():
		s.log.Warn("dispatch queue stop timed out", logx.Err(ctx.Err()))
	}
}

// SchedulePost arms a job for the schedule at `when`, replacing any pending
// job for the same schedule id. A `when` in the past runs as soon as a
// worker is free.
func (s *Service) SchedulePost(scheduleID string, when time.Time) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrStopped
	}

	job := Job{
		ID:           uuid.NewString(),
		ScheduleID:   scheduleID,
		ScheduledFor: when,
		MaxAttempts:  s.cfg.MaxAttempts,
	}
	s.arm(job)
	return nil
}

// CancelPost removes any not-yet-executed job for the schedule id, whether
// immediately pending or waiting out a backoff delay. Canceling a schedule
// with no pending job is a no-op. Reports whether a job was removed.
func (s *Service) CancelPost(scheduleID string) bool {
	s.tmu.Lock()
	e, ok := s.pending[scheduleID]
	if ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.pending, scheduleID)
	}
	s.tmu.Unlock()

	if ok {
		atomic.AddUint64(&s.cancelled, 1)
		s.publish("dispatch.cancelled", JobEvent{ScheduleID: scheduleID})
		s.log.Debug("job cancelled", logx.String("schedule", scheduleID))
	}
	return ok
}

// arm records the job as the schedule's single pending job and either queues
// it now or starts its delay timer. A newer arm for the same schedule id
// invalidates older queued copies via the version check at dequeue.
func (s *Service) arm(job Job) {
	s.tmu.Lock()
	s.verSeq++
	job.ver = s.verSeq
	if prev, ok := s.pending[job.ScheduleID]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	e := &pendingEntry{ver: job.ver}
	s.pending[job.ScheduleID] = e

	delay := time.Until(job.ScheduledFor)
	if delay <= 0 {
		s.tmu.Unlock()
		s.push(job)
		return
	}
	j := job
	e.timer = time.AfterFunc(delay, func() { s.fire(j) })
	s.tmu.Unlock()
}

// fire moves a delayed job into the worker channel if it is still current.
func (s *Service) fire(job Job) {
	s.tmu.Lock()
	e, ok := s.pending[job.ScheduleID]
	if !ok || e.ver != job.ver {
		s.tmu.Unlock()
		return
	}
	e.timer = nil
	s.tmu.Unlock()
	s.push(job)
}

func (s *Service) push(job Job) {
	s.mu.Lock()
	q := s.q
	running := s.running
	s.mu.Unlock()
	if !running || q == nil {
		return
	}

	select {
	case q <- job:
	default:
		// The claim has already advanced, so this occurrence is lost; the
		// schedule fires again on its own timeline. Make the loss loud.
		atomic.AddUint64(&s.dropped, 1)
		s.takePending(job)
		s.rep.Failure("dispatch.enqueue", ErrQueueFull,
			logx.String("schedule", job.ScheduleID))
		s.log.Warn("job dropped: queue full",
			logx.String("schedule", job.ScheduleID), logx.Int("queue_cap", cap(q)))
	}
}

// takePending claims the pending entry for execution. It returns false when
// the job was cancelled or superseded after being queued.
func (s *Service) takePending(job Job) bool {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	e, ok := s.pending[job.ScheduleID]
	if !ok || e.ver != job.ver {
		return false
	}
	delete(s.pending, job.ScheduleID)
	return true
}

func (s *Service) publish(typ string, data JobEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.running
	q := s.q
	s.mu.Unlock()

	ql, qc := 0, 0
	if q != nil {
		ql, qc = len(q), cap(q)
	}

	s.tmu.Lock()
	pending := len(s.pending)
	s.tmu.Unlock()

	return Snapshot{
		Running:   running,
		Workers:   s.cfg.Workers,
		QueueLen:  ql,
		QueueCap:  qc,
		Pending:   pending,
		Delivered: atomic.LoadUint64(&s.delivered),
		Terminal:  atomic.LoadUint64(&s.terminal),
		Retried:   atomic.LoadUint64(&s.retried),
		Exhausted: atomic.LoadUint64(&s.exhausted),
		Cancelled: atomic.LoadUint64(&s.cancelled),
		Dropped:   atomic.LoadUint64(&s.dropped),
	}
}

// backoffDelay computes the wait before re-running a job that has already
// made `attempt` failed attempts: initial * multiplier^attempt, capped.
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt)))
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}
