package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"postbot/internal/outcome"
	"postbot/internal/report"
	logx "postbot/pkg/logx"
)

type execFunc func(ctx context.Context, scheduleID string) outcome.Outcome

func (f execFunc) Execute(ctx context.Context, scheduleID string) outcome.Outcome {
	return f(ctx, scheduleID)
}

type recordingReporter struct {
	mu     sync.Mutex
	scopes []string
}

func (r *recordingReporter) Failure(scope string, err error, _ ...logx.Field) {
	r.mu.Lock()
	r.scopes = append(r.scopes, scope)
	r.mu.Unlock()
}

func (r *recordingReporter) Breadcrumb(string, string, ...logx.Field) {}

func (r *recordingReporter) seen(scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func testConfig() Config {
	return Config{
		Workers:           2,
		QueueSize:         8,
		ExecTimeout:       time.Second,
		MaxAttempts:       3,
		InitialDelay:      5 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          50 * time.Millisecond,
	}
}

func startQueue(t *testing.T, cfg Config, exec Executor, rep report.Reporter) *Service {
	t.Helper()
	if rep == nil {
		rep = report.Nop()
	}
	s := New(cfg, exec, logx.Nop(), nil, rep)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestBackoffDelaySequence(t *testing.T) {
	t.Parallel()
	cfg := Config{
		MaxAttempts:       3,
		InitialDelay:      60 * time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          3600 * time.Second,
	}.withDefaults()

	want := []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}
	for attempt, d := range want {
		if got := backoffDelay(cfg, attempt); got != d {
			t.Fatalf("backoffDelay(attempt=%d) = %v, want %v", attempt, got, d)
		}
	}
	// Deep attempts hit the cap.
	if got := backoffDelay(cfg, 10); got != 3600*time.Second {
		t.Fatalf("backoffDelay(attempt=10) = %v, want 1h cap", got)
	}
}

func TestSuccessIsTerminal(t *testing.T) {
	t.Parallel()
	var calls uint64
	s := startQueue(t, testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Success()
	}), nil)

	if err := s.SchedulePost("sched-1", time.Now()); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return atomic.LoadUint64(&calls) == 1 }) {
		t.Fatalf("Execute calls = %d, want 1", atomic.LoadUint64(&calls))
	}
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 1 {
		t.Fatalf("Execute re-ran after success: %d calls", n)
	}
	if snap := s.Snapshot(); snap.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1", snap.Delivered)
	}
}

func TestRetryableFailureExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	var calls uint64
	rep := &recordingReporter{}
	s := startQueue(t, testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Failure(outcome.CodeRateLimited, "429")
	}), rep)

	if err := s.SchedulePost("sched-1", time.Now()); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	// maxAttempts=3: initial attempt + 3 retries, then exhausted.
	if !waitFor(t, 2*time.Second, func() bool { return atomic.LoadUint64(&calls) == 4 }) {
		t.Fatalf("Execute calls = %d, want 4", atomic.LoadUint64(&calls))
	}
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 4 {
		t.Fatalf("job resubmitted after exhaustion: %d calls", n)
	}

	snap := s.Snapshot()
	if snap.Retried != 3 || snap.Exhausted != 1 {
		t.Fatalf("Retried = %d, Exhausted = %d, want 3 and 1", snap.Retried, snap.Exhausted)
	}
	if !rep.seen("dispatch.exhausted") {
		t.Fatal("exhaustion was not reported")
	}
}

func TestTerminalCodeSkipsRetry(t *testing.T) {
	t.Parallel()
	var calls uint64
	rep := &recordingReporter{}
	s := startQueue(t, testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Failure(outcome.CodeChannelNotFound, "chat not found")
	}), rep)

	if err := s.SchedulePost("sched-1", time.Now()); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return atomic.LoadUint64(&calls) == 1 }) {
		t.Fatalf("Execute calls = %d, want 1", atomic.LoadUint64(&calls))
	}
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 1 {
		t.Fatalf("terminal failure was retried: %d calls", n)
	}

	snap := s.Snapshot()
	if snap.Terminal != 1 || snap.Retried != 0 {
		t.Fatalf("Terminal = %d, Retried = %d, want 1 and 0", snap.Terminal, snap.Retried)
	}
	if !rep.seen("dispatch.terminal") {
		t.Fatal("terminal failure was not reported")
	}
}

func TestCancelPostIdempotent(t *testing.T) {
	t.Parallel()
	var calls uint64
	s := startQueue(t, testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Success()
	}), nil)

	// No pending job: no-op.
	if s.CancelPost("sched-1") {
		t.Fatal("CancelPost on empty queue reported a removal")
	}

	if err := s.SchedulePost("sched-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	if !s.CancelPost("sched-1") {
		t.Fatal("CancelPost did not remove the delayed job")
	}
	if s.CancelPost("sched-1") {
		t.Fatal("second CancelPost reported a removal")
	}

	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 0 {
		t.Fatalf("cancelled job still executed: %d calls", n)
	}
}

func TestCancelDuringBackoffStopsRetry(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.InitialDelay = 100 * time.Millisecond

	var calls uint64
	s := startQueue(t, cfg, execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Failure(outcome.CodeTelegramAPI, "boom")
	}), nil)

	if err := s.SchedulePost("sched-1", time.Now()); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	if !waitFor(t, time.Second, func() bool { return atomic.LoadUint64(&calls) == 1 }) {
		t.Fatalf("first attempt never ran")
	}

	// The retry is now waiting out its backoff window.
	if !waitFor(t, time.Second, func() bool { return s.CancelPost("sched-1") }) {
		t.Fatal("CancelPost found no delayed retry")
	}

	time.Sleep(250 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 1 {
		t.Fatalf("retry ran despite cancel: %d calls", n)
	}
}

func TestSchedulePostReplacesPendingJob(t *testing.T) {
	t.Parallel()
	var calls uint64
	s := startQueue(t, testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		atomic.AddUint64(&calls, 1)
		return outcome.Success()
	}), nil)

	if err := s.SchedulePost("sched-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	if err := s.SchedulePost("sched-1", time.Now()); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return atomic.LoadUint64(&calls) == 1 }) {
		t.Fatalf("replacement job never ran")
	}
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadUint64(&calls); n != 1 {
		t.Fatalf("Execute calls = %d, want exactly 1", n)
	}
}

func TestSchedulePostWhenStopped(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), execFunc(func(context.Context, string) outcome.Outcome {
		return outcome.Success()
	}), logx.Nop(), nil, report.Nop())

	if err := s.SchedulePost("sched-1", time.Now()); err != ErrStopped {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}
