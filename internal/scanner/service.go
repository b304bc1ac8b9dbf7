package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"postbot/internal/eventbus"
	"postbot/internal/report"
	"postbot/internal/store"
	logx "postbot/pkg/logx"
)

type Service struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	rep   report.Reporter
	store store.Store
	queue JobQueue

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	lastTickAt atomic.Int64 // unix millis
	ticks      uint64
	claimed    uint64
	skipped    uint64
}

func New(cfg Config, st store.Store, queue JobQueue, log logx.Logger, bus eventbus.Bus, rep report.Reporter) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if rep == nil {
		rep = report.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		log:   log,
		bus:   bus,
		rep:   rep,
		store: st,
		queue: queue,
	}
}

// Start arms the periodic tick. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, stopCh)
	}()
	s.log.Info("scanner started", logx.Duration("interval", s.cfg.Interval))
}

// Stop halts future ticks. Jobs already handed to the dispatch queue are
// unaffected; only CancelPost aborts those.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scanner stopped")
	case <-ctx.Done():
		s.log.Warn("scanner stop timed out", logx.Err(ctx.Err()))
	}
}

func (s *Service) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case tickTime := <-ticker.C:
			s.lastTickAt.Store(tickTime.UnixMilli())
			atomic.AddUint64(&s.ticks, 1)
			s.tick(ctx, tickTime)
		}
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	var last time.Time
	if ms := s.lastTickAt.Load(); ms != 0 {
		last = time.UnixMilli(ms)
	}
	return Snapshot{
		Running:    running,
		Interval:   s.cfg.Interval,
		LastTickAt: last,
		Ticks:      atomic.LoadUint64(&s.ticks),
		Claimed:    atomic.LoadUint64(&s.claimed),
		Skipped:    atomic.LoadUint64(&s.skipped),
	}
}
