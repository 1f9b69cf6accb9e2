package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valpere/cloudtran/internal/poller"
	"github.com/valpere/cloudtran/internal/store"
	"github.com/valpere/cloudtran/internal/upload"
)

// ErrSuperseded is returned when Clear or another request replaced the
// session state while a submission was in flight.
var ErrSuperseded = errors.New("request superseded")

type Mode string

const (
	ModeText     Mode = "text"
	ModeDocument Mode = "document"
)

// State is what a user of the session sees.
type State struct {
	Mode           Mode         `json:"mode"`
	TargetLang     string       `json:"target_lang"`
	FileName       string       `json:"file_name,omitempty"`
	TranslatedText string       `json:"translated_text,omitempty"`
	DetectedSource string       `json:"detected_source,omitempty"`
	Warning        string       `json:"warning,omitempty"`
	JobID          string       `json:"job_id,omitempty"`
	JobStatus      string       `json:"job_status,omitempty"`
	PollState      poller.State `json:"poll_state,omitempty"`
	Attempts       int          `json:"attempts"`
	Progress       float64      `json:"progress"`
	IsLoading      bool         `json:"is_loading"`
	IsPolling      bool         `json:"is_polling"`
	Success        bool         `json:"success"`
	DownloadURL    string       `json:"download_url,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// History records document jobs. *store.Store implements it.
type History interface {
	SaveJob(ctx context.Context, rec *store.JobRecord) error
	UpdateJob(ctx context.Context, jobID string, u store.JobUpdate) error
}

type SessionConfig struct {
	// Poll configures the session's poller. Its OnUpdate is chained after
	// the session's own handler and its Logger is replaced by Logger.
	Poll poller.Config
	// History may be nil.
	History History
	// OnChange is called after every state change, outside the session lock.
	// It must not call back into the session.
	OnChange func(State)
	Logger   zerolog.Logger
}

// Session holds the state of one translation UI and owns its poller. At
// most one document job is polled per session.
type Session struct {
	ID string

	orch   *Orchestrator
	poller *poller.Poller
	cfg    SessionConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	seq     uint64
	touched time.Time
}

func NewSession(orch *Orchestrator, cfg SessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      uuid.NewString(),
		orch:    orch,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		touched: time.Now(),
	}

	pc := cfg.Poll
	next := pc.OnUpdate
	pc.OnUpdate = func(snap poller.Snapshot) {
		s.onPoll(snap)
		if next != nil {
			next(snap)
		}
	}
	pc.Logger = cfg.Logger.With().Str("session_id", s.ID).Logger()
	s.poller = poller.New(orch.Backend(), pc)
	return s
}

// PollInterval is the configured delay between status checks.
func (s *Session) PollInterval() time.Duration {
	return s.poller.Interval()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive is the time of the last state change.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// TranslateText translates text and records the result or the error in the
// session state. A document poll in progress is stopped first.
func (s *Session) TranslateText(ctx context.Context, text, targetLang string) (*TextResult, error) {
	s.poller.Close()
	seq := s.begin(ModeText, targetLang, "")

	res, err := s.orch.TranslateText(ctx, text, targetLang)

	s.update(seq, func(st *State) {
		st.IsLoading = false
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.TranslatedText = res.TranslatedText
		st.DetectedSource = res.SourceLang
		st.Warning = res.Warning
		st.Success = true
	})
	return res, err
}

// TranslateDocument submits doc and starts polling the created job. It
// returns once polling has started; use Wait to block until it ends. A
// previous poll is stopped first.
func (s *Session) TranslateDocument(ctx context.Context, doc *upload.Document, targetLang string) (string, error) {
	s.poller.Close()
	name := ""
	if doc != nil {
		name = doc.Name
	}
	seq := s.begin(ModeDocument, targetLang, name)

	handle, err := s.orch.SubmitDocument(ctx, doc, targetLang, func(msg string) {
		s.update(seq, func(st *State) { st.JobStatus = msg })
	})
	if err != nil {
		s.update(seq, func(st *State) {
			st.IsLoading = false
			st.JobStatus = ""
			st.Error = err.Error()
		})
		return "", err
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return handle.JobID, ErrSuperseded
	}
	s.state.IsLoading = false
	s.state.JobID = handle.JobID
	s.mu.Unlock()

	if s.cfg.History != nil {
		rec := &store.JobRecord{
			JobID:      handle.JobID,
			FileName:   doc.Name,
			TargetLang: targetLang,
			State:      string(poller.StatePolling),
		}
		if err := s.cfg.History.SaveJob(ctx, rec); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("job_id", handle.JobID).Msg("failed to record job")
		}
	}

	s.poller.Start(s.ctx, handle.JobID)

	s.mu.Lock()
	superseded := seq != s.seq
	s.mu.Unlock()
	if superseded {
		s.poller.Close()
		return handle.JobID, ErrSuperseded
	}
	return handle.JobID, nil
}

// TranslateFile validates the file at path and submits it. A file that fails
// validation never reaches the network.
func (s *Session) TranslateFile(ctx context.Context, path, targetLang string) (string, error) {
	doc, err := upload.Open(path)
	if err != nil {
		s.poller.Close()
		seq := s.begin(ModeDocument, targetLang, filepath.Base(path))
		s.update(seq, func(st *State) {
			st.IsLoading = false
			st.Error = err.Error()
		})
		return "", err
	}
	return s.TranslateDocument(ctx, doc, targetLang)
}

// Watch polls an existing job, e.g. one submitted by an earlier run.
func (s *Session) Watch(jobID string) {
	s.poller.Close()
	seq := s.begin(ModeDocument, "", "")
	s.update(seq, func(st *State) {
		st.IsLoading = false
		st.JobID = jobID
	})
	s.poller.Start(s.ctx, jobID)
}

// Wait blocks until the current poll ends and returns the final state with
// the poll's terminal error.
func (s *Session) Wait(ctx context.Context) (State, error) {
	_, err := s.poller.Wait(ctx)
	return s.Snapshot(), err
}

// Cancel stops polling. The job keeps running remotely.
func (s *Session) Cancel() {
	s.poller.Cancel()
}

// Clear stops polling and resets the state, keeping the mode and target.
func (s *Session) Clear() {
	s.poller.Close()

	s.mu.Lock()
	s.seq++
	s.state = State{Mode: s.state.Mode, TargetLang: s.state.TargetLang}
	s.touched = time.Now()
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

// Close releases the poller. The session must not be used afterwards.
func (s *Session) Close() {
	s.poller.Close()
	s.cancel()
}

func (s *Session) begin(mode Mode, targetLang, fileName string) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state = State{
		Mode:       mode,
		TargetLang: targetLang,
		FileName:   fileName,
		IsLoading:  true,
	}
	s.touched = time.Now()
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return seq
}

// update applies fn unless the state was reset since seq was issued.
func (s *Session) update(seq uint64, fn func(*State)) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	fn(&s.state)
	s.touched = time.Now()
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

func (s *Session) onPoll(snap poller.Snapshot) {
	s.record(snap)

	s.mu.Lock()
	if snap.JobID == "" || snap.JobID != s.state.JobID {
		s.mu.Unlock()
		return
	}
	st := &s.state
	st.PollState = snap.State
	st.Attempts = snap.Attempts
	st.Progress = snap.Progress
	st.JobStatus = snap.Message
	st.IsPolling = snap.State == poller.StatePolling
	st.DownloadURL = snap.DownloadURL

	switch snap.State {
	case poller.StateCompleted:
		st.Success = true
	case poller.StateFailed:
		st.Error = "Translation job failed. Please try again."
	case poller.StateTimedOut:
		st.Error = fmt.Sprintf("Job timed out after %s. Check the job later with: cloudtran status %s",
			s.poller.Interval()*time.Duration(snap.MaxAttempts), snap.JobID)
	case poller.StateCancelled:
		st.JobStatus = fmt.Sprintf("%s You can check the job later with: cloudtran status %s", snap.Message, snap.JobID)
	}
	s.touched = time.Now()
	out := s.state
	s.mu.Unlock()

	s.notify(out)
}

// record writes the poll result to the job history.
func (s *Session) record(snap poller.Snapshot) {
	if s.cfg.History == nil || snap.JobID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.cfg.History.UpdateJob(ctx, snap.JobID, store.JobUpdate{
		State:        string(snap.State),
		RemoteStatus: string(snap.RemoteStatus),
		DownloadURL:  snap.DownloadURL,
		Attempts:     snap.Attempts,
		LastError:    snap.LastError,
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.cfg.Logger.Warn().Err(err).Str("job_id", snap.JobID).Msg("failed to update job history")
	}
}

func (s *Session) notify(st State) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(st)
	}
}
