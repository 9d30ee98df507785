package view

import (
	"sync"
	"time"

	"github.com/jobhack/web/internal/job"
	"github.com/rs/zerolog"
)

// Registry holds one Session per visitor.
type Registry struct {
	mu       sync.Mutex
	fetcher  Fetcher
	now      func() time.Time
	sessions map[string]*Session
	logger   zerolog.Logger
}

func NewRegistry(f Fetcher, logger zerolog.Logger) *Registry {
	return &Registry{
		fetcher:  f,
		now:      time.Now,
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Get returns the visitor's session, creating it on first use.
func (r *Registry) Get(visitorID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[visitorID]
	if !ok {
		s = newSession(r.fetcher, r.now)
		logger := r.logger.With().Str("visitor", visitorID).Logger()
		s.OnUpsell(func(reason job.Reason) {
			logger.Info().Str("reason", string(reason)).Msg("upgrade prompt raised")
		})
		r.sessions[visitorID] = s
	}
	return s
}

// Sweep drops sessions idle for longer than maxIdle and returns how many it
// removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			s.Leave()
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
