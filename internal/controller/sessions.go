package controller

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSessionTTL is how long an unused session keeps its controller.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions caps the number of live sessions.
const DefaultMaxSessions = 10000

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Sessions maps session ids to controllers and closes idle ones.
type Sessions struct {
	factory func() *Controller
	ttl     time.Duration
	limit   int
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	stopCh   chan struct{}
	once     sync.Once
}

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithMaxSessions caps the live sessions. Creating one past the cap evicts
// the least recently seen.
func WithMaxSessions(n int) SessionsOption {
	return func(s *Sessions) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewSessions creates a session registry. factory builds the controller for a
// new session.
func NewSessions(factory func() *Controller, ttl time.Duration, logger zerolog.Logger, opts ...SessionsOption) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &Sessions{
		factory:  factory,
		ttl:      ttl,
		limit:    DefaultMaxSessions,
		logger:   logger.With().Str("component", "sessions").Logger(),
		now:      time.Now,
		sessions: make(map[string]*session),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the controller of a session, creating it on first use.
func (s *Sessions) Get(id string) *Controller {
	var evicted *Controller

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		if len(s.sessions) >= s.limit {
			evicted = s.evictOldestLocked()
		}
		sess = &session{ctrl: s.factory()}
		s.sessions[id] = sess
		s.logger.Debug().Str("session", id).Msg("session created")
	}
	sess.lastSeen = s.now()
	ctrl := sess.ctrl
	s.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return ctrl
}

// evictOldestLocked removes the least recently seen session and returns its
// controller for closing.
func (s *Sessions) evictOldestLocked() *Controller {
	var (
		oldestID string
		oldest   *session
	)
	for id, sess := range s.sessions {
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, sess
		}
	}
	if oldest == nil {
		return nil
	}
	delete(s.sessions, oldestID)
	s.logger.Warn().Str("session", oldestID).Int("limit", s.limit).Msg("session limit reached, evicting least recent")
	return oldest.ctrl
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*Controller

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess.ctrl)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	if len(expired) > 0 {
		s.logger.Debug().Int("count", len(expired)).Msg("expired sessions closed")
	}
	return len(expired)
}

// Start runs Sweep periodically until Stop.
func (s *Sessions) Start(interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop ends the sweeper and closes every session.
func (s *Sessions) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		all := s.sessions
		s.sessions = make(map[string]*session)
		s.mu.Unlock()
		for _, sess := range all {
			sess.ctrl.Close()
		}
	})
}
