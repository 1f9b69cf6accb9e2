package poller

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/cloudtran/internal/api"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// tick delivers one tick, failing if the loop is not waiting for it.
func (t *manualTicker) tick(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-time.After(2 * time.Second):
		tb.Fatal("poller did not accept tick")
	}
}

// assertIdle checks that nothing is receiving ticks any more.
func (t *manualTicker) assertIdle(tb testing.TB) {
	tb.Helper()
	if !t.stopped.Load() {
		tb.Error("expected ticker to be stopped")
	}
	select {
	case t.ch <- time.Now():
		tb.Error("tick accepted after polling stopped")
	default:
	}
}

type tickerFactory struct {
	created chan *manualTicker
}

func newTickerFactory() *tickerFactory {
	return &tickerFactory{created: make(chan *manualTicker, 8)}
}

func (f *tickerFactory) New(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	f.created <- t
	return t
}

func (f *tickerFactory) next(tb testing.TB) *manualTicker {
	tb.Helper()
	select {
	case t := <-f.created:
		return t
	case <-time.After(2 * time.Second):
		tb.Fatal("no ticker created")
		return nil
	}
}

type fakeChecker struct {
	mu     sync.Mutex
	calls  int
	jobIDs []string
	fn     func(ctx context.Context, call int) (*api.Job, error)
}

func (c *fakeChecker) CheckStatus(ctx context.Context, jobID string) (*api.Job, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.jobIDs = append(c.jobIDs, jobID)
	c.mu.Unlock()
	return c.fn(ctx, call)
}

func (c *fakeChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func inProgressUntil(n int, final *api.Job) func(context.Context, int) (*api.Job, error) {
	return func(_ context.Context, call int) (*api.Job, error) {
		if call < n {
			return &api.Job{Status: api.StatusInProgress}, nil
		}
		return final, nil
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestProgress(t *testing.T) {
	tests := []struct {
		attempts int
		want     float64
	}{
		{0, 0},
		{1, 100.0 / 360},
		{180, 50},
		{342, 95},
		{350, 95},
		{360, 95},
	}
	for _, tt := range tests {
		got := Progress(tt.attempts, 360)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Progress(%d, 360) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestProgress_MonotonicAndCapped(t *testing.T) {
	prev := -1.0
	for a := 0; a < 360; a++ {
		got := Progress(a, 360)
		want := math.Min(float64(a)/360, 0.95) * 100
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Progress(%d) = %v, want %v", a, got, want)
		}
		if got < prev {
			t.Fatalf("progress decreased at attempt %d: %v < %v", a, got, prev)
		}
		if got >= 100 {
			t.Fatalf("progress reached %v before completion", got)
		}
		prev = got
	}
}

func TestPoller_New_Defaults(t *testing.T) {
	p := New(&fakeChecker{}, Config{})

	if p.Interval() != DefaultInterval {
		t.Errorf("expected interval %v, got %v", DefaultInterval, p.Interval())
	}
	snap := p.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("expected IDLE, got %s", snap.State)
	}
	if snap.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected budget %d, got %d", DefaultMaxAttempts, snap.MaxAttempts)
	}
}

func TestPoller_Wait_NotStarted(t *testing.T) {
	p := New(&fakeChecker{}, Config{})

	_, err := p.Wait(context.Background())
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestPoller_CompletesOnThirdTick(t *testing.T) {
	checker := &fakeChecker{fn: inProgressUntil(3, &api.Job{Status: api.StatusCompleted, DownloadURL: "https://x/y"})}
	factory := newTickerFactory()

	var mu sync.Mutex
	var states []State
	p := New(checker, Config{
		MaxAttempts: 360,
		NewTicker:   factory.New,
		OnUpdate: func(s Snapshot) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
	})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	for i := 0; i < 3; i++ {
		tk.tick(t)
	}

	snap, err := p.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", snap.State)
	}
	if snap.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", snap.Attempts)
	}
	if snap.DownloadURL != "https://x/y" {
		t.Errorf("expected download url https://x/y, got %q", snap.DownloadURL)
	}
	if snap.Progress != 100 {
		t.Errorf("expected progress 100, got %v", snap.Progress)
	}
	if checker.callCount() != 3 {
		t.Errorf("expected 3 status checks, got %d", checker.callCount())
	}
	tk.assertIdle(t)

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[0] != StatePolling {
		t.Fatalf("expected first update to be POLLING, got %v", states)
	}
	if states[len(states)-1] != StateCompleted {
		t.Errorf("expected last update to be COMPLETED, got %v", states)
	}
	for _, s := range states[:len(states)-1] {
		if s != StatePolling {
			t.Errorf("unexpected intermediate state %s in %v", s, states)
		}
	}
}

func TestPoller_Failed(t *testing.T) {
	checker := &fakeChecker{fn: inProgressUntil(2, &api.Job{Status: api.StatusFailed})}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	tk.tick(t)
	tk.tick(t)

	snap, err := p.Wait(waitCtx(t))
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if snap.State != StateFailed {
		t.Errorf("expected FAILED, got %s", snap.State)
	}
	if snap.DownloadURL != "" {
		t.Errorf("expected no download url, got %q", snap.DownloadURL)
	}
	tk.assertIdle(t)
}

func TestPoller_TimesOutAfterBudget(t *testing.T) {
	checker := &fakeChecker{fn: func(context.Context, int) (*api.Job, error) {
		return &api.Job{Status: api.StatusInProgress}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{MaxAttempts: 360, NewTicker: factory.New})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	for i := 0; i < 360; i++ {
		tk.tick(t)
	}

	snap, err := p.Wait(waitCtx(t))
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if snap.Attempts != 360 {
		t.Errorf("expected 360 attempts, got %d", snap.Attempts)
	}
	if snap.RemoteStatus != api.StatusInProgress {
		t.Errorf("expected last remote status IN_PROGRESS, got %s", snap.RemoteStatus)
	}
	if checker.callCount() != 360 {
		t.Errorf("expected 360 status checks, got %d", checker.callCount())
	}
	tk.assertIdle(t)
}

func TestPoller_TransientErrorKeepsPolling(t *testing.T) {
	checker := &fakeChecker{fn: func(_ context.Context, call int) (*api.Job, error) {
		if call == 1 {
			return nil, &api.NetworkError{Op: "check status", Err: errors.New("connection reset")}
		}
		return &api.Job{Status: api.StatusCompleted, DownloadURL: "https://x/y"}, nil
	}}
	factory := newTickerFactory()

	var lastErrSeen atomic.Bool
	p := New(checker, Config{
		NewTicker: factory.New,
		OnUpdate: func(s Snapshot) {
			if s.LastError != "" && s.State == StatePolling {
				lastErrSeen.Store(true)
			}
		},
	})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	tk.tick(t)
	tk.tick(t)

	snap, err := p.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", snap.Attempts)
	}
	if snap.LastError != "" {
		t.Errorf("expected error cleared after success, got %q", snap.LastError)
	}
	if !lastErrSeen.Load() {
		t.Error("expected an update carrying the transient error")
	}
}

func TestPoller_Cancel(t *testing.T) {
	checker := &fakeChecker{fn: func(context.Context, int) (*api.Job, error) {
		return &api.Job{Status: api.StatusInProgress}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	tk.tick(t)
	tk.tick(t)

	p.Cancel()

	snap := p.Snapshot()
	if snap.State != StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", snap.State)
	}
	tk.assertIdle(t)

	calls := checker.callCount()
	if _, err := p.Wait(waitCtx(t)); !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if checker.callCount() != calls {
		t.Error("status checked after cancel")
	}
	if p.Snapshot().State != StateCancelled {
		t.Error("state changed after cancel")
	}
}

func TestPoller_CancelDuringCheck(t *testing.T) {
	started := make(chan struct{})
	checker := &fakeChecker{fn: func(ctx context.Context, _ int) (*api.Job, error) {
		close(started)
		<-ctx.Done()
		return &api.Job{Status: api.StatusCompleted, DownloadURL: "https://late"}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	tk.tick(t)
	<-started

	p.Cancel()

	snap := p.Snapshot()
	if snap.State != StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", snap.State)
	}
	if snap.DownloadURL != "" {
		t.Errorf("in-flight result applied after cancel: %q", snap.DownloadURL)
	}
	tk.assertIdle(t)
}

func TestPoller_CancelWhenIdle(t *testing.T) {
	p := New(&fakeChecker{}, Config{})

	p.Cancel()

	if p.Snapshot().State != StateIdle {
		t.Errorf("expected IDLE, got %s", p.Snapshot().State)
	}
}

func TestPoller_StartCancelsPrevious(t *testing.T) {
	checker := &fakeChecker{fn: func(context.Context, int) (*api.Job, error) {
		return &api.Job{Status: api.StatusInProgress}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	p.Start(context.Background(), "job-a")
	first := factory.next(t)
	first.tick(t)

	p.Start(context.Background(), "job-b")
	first.assertIdle(t)

	second := factory.next(t)
	second.tick(t)
	second.tick(t)

	snap := p.Snapshot()
	if snap.JobID != "job-b" {
		t.Errorf("expected job-b, got %q", snap.JobID)
	}
	if snap.State != StatePolling {
		t.Errorf("expected POLLING, got %s", snap.State)
	}

	checker.mu.Lock()
	ids := append([]string(nil), checker.jobIDs...)
	checker.mu.Unlock()
	if len(ids) < 2 || ids[0] != "job-a" || ids[1] != "job-b" {
		t.Errorf("unexpected checked job ids: %v", ids)
	}

	p.Close()
	second.assertIdle(t)
}

func TestPoller_ParentContextCancelled(t *testing.T) {
	checker := &fakeChecker{fn: func(context.Context, int) (*api.Job, error) {
		return &api.Job{Status: api.StatusPending}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, "job-1")
	tk := factory.next(t)
	tk.tick(t)
	cancel()

	snap, err := p.Wait(waitCtx(t))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if snap.State != StateCancelled {
		t.Errorf("expected CANCELLED, got %s", snap.State)
	}
	tk.assertIdle(t)
}

func TestPoller_ProcessingMessage(t *testing.T) {
	checker := &fakeChecker{fn: func(context.Context, int) (*api.Job, error) {
		return &api.Job{Status: "SUBMITTED"}, nil
	}}
	factory := newTickerFactory()
	p := New(checker, Config{NewTicker: factory.New})

	p.Start(context.Background(), "job-1")
	tk := factory.next(t)
	tk.tick(t)
	tk.tick(t) // the second send returns only after the first tick was applied

	snap := p.Snapshot()
	if snap.Message != "Processing... (SUBMITTED)" {
		t.Errorf("unexpected message %q", snap.Message)
	}
	p.Close()
}

func TestPoller_RealTicker(t *testing.T) {
	checker := &fakeChecker{fn: inProgressUntil(2, &api.Job{Status: api.StatusCompleted, DownloadURL: "https://x/y"})}
	p := New(checker, Config{Interval: 5 * time.Millisecond})

	p.Start(context.Background(), "job-1")

	snap, err := p.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", snap.Attempts)
	}
}
