// Package poller drives a remote translation job to a terminal state by
// checking its status on a fixed interval.
//
// A Poller owns at most one running loop and therefore at most one ticker.
// Start, Cancel and Close all stop the previous loop and wait for it to
// exit before returning, so no tick is ever handled after they return.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/cloudtran/internal/api"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 360

	// progressCap keeps the estimate below 100 until the job really completes.
	progressCap = 0.95
)

type State string

const (
	StateIdle      State = "IDLE"
	StatePolling   State = "POLLING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether the state ends a poll.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

var (
	ErrJobFailed  = errors.New("translation job failed")
	ErrTimedOut   = errors.New("job status polling timed out")
	ErrCancelled  = errors.New("job status polling cancelled")
	ErrNotStarted = errors.New("poller not started")
)

// StatusChecker issues one status check for a job.
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string) (*api.Job, error)
}

// Ticker is the subset of *time.Ticker the loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// NewTicker defaults to NewTimeTicker.
	NewTicker func(time.Duration) Ticker
	// OnUpdate is called from the polling goroutine after every state
	// change. It must not call Start, Cancel or Close.
	OnUpdate func(Snapshot)
	Logger   zerolog.Logger
}

// Snapshot is a copy of the poller's observable state.
type Snapshot struct {
	JobID        string        `json:"job_id,omitempty"`
	State        State         `json:"state"`
	Attempts     int           `json:"attempts"`
	MaxAttempts  int           `json:"max_attempts"`
	Progress     float64       `json:"progress"`
	RemoteStatus api.JobStatus `json:"remote_status,omitempty"`
	Message      string        `json:"message,omitempty"`
	DownloadURL  string        `json:"download_url,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// Err maps a terminal snapshot to the error Wait reports for it.
func (s Snapshot) Err() error {
	switch s.State {
	case StateFailed:
		return ErrJobFailed
	case StateTimedOut:
		return ErrTimedOut
	case StateCancelled:
		return ErrCancelled
	case StateIdle:
		return ErrNotStarted
	}
	return nil
}

type Poller struct {
	checker StatusChecker
	cfg     Config

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func New(checker StatusChecker, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	return &Poller{
		checker: checker,
		cfg:     cfg,
		snap:    Snapshot{State: StateIdle, MaxAttempts: cfg.MaxAttempts},
	}
}

// Interval returns the configured check interval.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Progress is the UI estimate for a poll that has made attempts checks out
// of budget: min(attempts/budget, 0.95) * 100.
func Progress(attempts, budget int) float64 {
	if budget <= 0 || attempts <= 0 {
		return 0
	}
	ratio := float64(attempts) / float64(budget)
	if ratio > progressCap {
		ratio = progressCap
	}
	return ratio * 100
}

// Start begins polling jobID. A poll already in progress is stopped first.
// The loop also stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context, jobID string) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	p.mu.Lock()
	if gen != p.gen {
		// A later Start or Cancel already superseded this one.
		p.mu.Unlock()
		cancel()
		close(done)
		return
	}
	p.snap = Snapshot{
		JobID:       jobID,
		State:       StatePolling,
		MaxAttempts: p.cfg.MaxAttempts,
		Message:     "Job started! Checking status...",
	}
	snap := p.snap
	p.mu.Unlock()

	p.cfg.Logger.Info().
		Str("job_id", jobID).
		Dur("interval", p.cfg.Interval).
		Int("max_attempts", p.cfg.MaxAttempts).
		Msg("polling started")
	p.notify(snap)

	go p.run(runCtx, cancel, gen, jobID, done)
}

// Cancel stops an active poll and moves it to CANCELLED. It is a no-op when
// nothing is polling.
func (p *Poller) Cancel() {
	p.stop("Polling cancelled.")
}

// Close releases the ticker of any active poll. Use it when whatever hosts
// the poller goes away.
func (p *Poller) Close() {
	p.stop("Polling stopped.")
}

func (p *Poller) stop(message string) {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.gen++
	var snap Snapshot
	changed := false
	if p.snap.State == StatePolling {
		p.snap.State = StateCancelled
		p.snap.Progress = 0
		p.snap.Message = message
		snap = p.snap
		changed = true
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if changed {
		p.cfg.Logger.Info().Str("job_id", snap.JobID).Int("attempts", snap.Attempts).Msg("polling cancelled")
		p.notify(snap)
	}
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Wait blocks until the current poll ends or ctx is done, and returns the
// final snapshot with the error matching its state.
func (p *Poller) Wait(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}

	snap := p.Snapshot()
	return snap, snap.Err()
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, jobID string, done chan struct{}) {
	defer close(done)
	defer cancel()

	ticker := p.cfg.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			p.abandon(gen)
			return
		case <-ticker.C():
		}

		attempts++
		job, err := p.checker.CheckStatus(ctx, jobID)
		if ctx.Err() != nil {
			p.abandon(gen)
			return
		}

		snap, ok := p.apply(gen, attempts, job, err)
		if !ok {
			return
		}
		p.notify(snap)
		if snap.State.Terminal() {
			p.cfg.Logger.Info().
				Str("job_id", jobID).
				Str("state", string(snap.State)).
				Int("attempts", attempts).
				Msg("polling finished")
			return
		}
	}
}

// apply folds one status check into the snapshot. It reports false when the
// loop was superseded and must exit without touching state.
func (p *Poller) apply(gen uint64, attempts int, job *api.Job, err error) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || p.snap.State != StatePolling {
		return Snapshot{}, false
	}

	s := &p.snap
	s.Attempts = attempts
	s.Progress = Progress(attempts, p.cfg.MaxAttempts)

	switch {
	case err != nil:
		s.LastError = err.Error()
		p.cfg.Logger.Warn().Err(err).Str("job_id", s.JobID).Int("attempt", attempts).Msg("status check failed")
	case job.Status == api.StatusCompleted:
		s.State = StateCompleted
		s.RemoteStatus = job.Status
		s.DownloadURL = job.DownloadURL
		s.Progress = 100
		s.LastError = ""
		s.Message = "Translation completed successfully!"
	case job.Status == api.StatusFailed:
		s.State = StateFailed
		s.RemoteStatus = job.Status
		s.DownloadURL = ""
		s.LastError = ""
		s.Message = "Translation job failed. Please try again."
	default:
		s.RemoteStatus = job.Status
		s.LastError = ""
		s.Message = fmt.Sprintf("Processing... (%s)", job.Status)
	}

	if s.State == StatePolling && attempts >= p.cfg.MaxAttempts {
		s.State = StateTimedOut
		s.Message = fmt.Sprintf("Job timed out after %d status checks.", attempts)
	}

	return *s, true
}

// abandon marks a poll whose parent context ended as cancelled, unless
// Cancel or a newer Start already took over.
func (p *Poller) abandon(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.snap.State != StatePolling {
		p.mu.Unlock()
		return
	}
	p.snap.State = StateCancelled
	p.snap.Message = "Polling cancelled."
	snap := p.snap
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Poller) notify(snap Snapshot) {
	if p.cfg.OnUpdate != nil {
		p.cfg.OnUpdate(snap)
	}
}
