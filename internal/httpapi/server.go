// Package httpapi serves the translation UI's JSON API. Each document
// submission gets its own session, and with it its own poller.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/valpere/cloudtran/internal/orchestrator"
)

const (
	maxJSONBody = 1 << 20
	// multipart framing on top of the largest accepted document
	maxUploadBody = 21 << 20

	DefaultSessionTTL = time.Hour
)

type Options struct {
	// Session is the template for every document session.
	Session     orchestrator.SessionConfig
	CORSOrigins []string
	// SessionTTL is how long an idle session that is not polling is kept.
	SessionTTL time.Duration
	Logger     zerolog.Logger
}

type Server struct {
	orch *orchestrator.Orchestrator
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*orchestrator.Session
	closed   bool
}

func New(orch *orchestrator.Orchestrator, opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	opts.Session.Logger = opts.Logger
	return &Server{
		orch:     orch,
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]*orchestrator.Session),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(corsOptions(s.opts.CORSOrigins)))

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/languages", s.listLanguages)
		r.With(maxBodySize(maxJSONBody)).Post("/translate", s.translateText)

		r.Route("/documents", func(r chi.Router) {
			r.With(maxBodySize(maxUploadBody)).Post("/", s.submitDocument)
			r.Get("/{id}", s.getDocument)
			r.Post("/{id}/cancel", s.cancelDocument)
			r.Delete("/{id}", s.deleteDocument)
		})
	})

	return r
}

// Shutdown closes every session, stopping their pollers. The server
// rejects new documents afterwards.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*orchestrator.Session)
	s.closed = true
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.log.Info().Int("sessions", len(sessions)).Msg("sessions closed")
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) session(id string) (*orchestrator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) addSession(sess *orchestrator.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess.ID] = sess
	return true
}

func (s *Server) removeSession(id string) (*orchestrator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return sess, ok
}

// prune closes sessions that finished polling and have been idle longer
// than the TTL.
func (s *Server) prune(now time.Time) {
	var stale []*orchestrator.Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.Snapshot().IsPolling {
			continue
		}
		if now.Sub(sess.LastActive()) > s.opts.SessionTTL {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	if len(stale) > 0 {
		s.log.Debug().Int("sessions", len(stale)).Msg("idle sessions pruned")
	}
}
