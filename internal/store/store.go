// Package store owns conversation session state for the lifetime of the
// process. It is pure data access: no transition logic lives here.
package store

import (
	"sync"
	"time"

	"intake-agent/internal/domain"
)

const defaultRetention = 24 * time.Hour

// Store is an in-memory session store. Reads return snapshots; concurrent
// turns against the same session id are serialized through Acquire.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	locks     map[string]*sync.Mutex
	retention time.Duration

	now func() time.Time // test seam
}

// Option configures a Store.
type Option func(*Store)

// WithRetention overrides the 24h session retention window.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the store's notion of now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:  make(map[string]*domain.Session),
		locks:     make(map[string]*sync.Mutex),
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire takes the per-session turn lock and returns its release func.
// Two concurrent turns for the same id never interleave their
// read-modify-write; turns for different ids proceed independently.
func (s *Store) Acquire(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Create registers a fresh session in the gathering phase.
func (s *Store) Create(id string) domain.Session {
	now := s.now().UTC()
	sess := &domain.Session{
		ID:           id,
		Messages:     []domain.Message{},
		Phase:        domain.PhaseGathering,
		Requirements: map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return snapshot(sess)
}

// Get returns a snapshot of the session, or false if the id is unknown.
func (s *Store) Get(id string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return snapshot(sess), true
}

// AddMessage appends a message to the session transcript. Unknown ids are
// a no-op.
func (s *Store) AddMessage(id string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.now().UTC()
}

// UpdateMetadata applies a shallow merge: only non-nil fields of the
// partial are written. Unknown ids are a no-op.
func (s *Store) UpdateMetadata(id string, upd domain.MetadataUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if upd.UserID != nil {
		sess.UserID = *upd.UserID
	}
	if upd.ProblemType != nil {
		sess.ProblemType = *upd.ProblemType
	}
	if upd.Requirements != nil {
		sess.Requirements = copyRequirements(upd.Requirements)
	}
	if upd.ReadinessScore != nil {
		sess.ReadinessScore = *upd.ReadinessScore
	}
	if upd.EscalationReason != nil {
		sess.EscalationReason = *upd.EscalationReason
	}
	sess.UpdatedAt = s.now().UTC()
}

// UpdatePhase moves the session to the given phase. Unknown ids are a no-op.
func (s *Store) UpdatePhase(id string, phase domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Phase = phase
	sess.UpdatedAt = s.now().UTC()
}

// IncrementConfirmationAttempts bumps the attempt counter and returns the
// new count. Unknown ids return 0.
func (s *Store) IncrementConfirmationAttempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0
	}
	sess.ConfirmationAttempts++
	sess.UpdatedAt = s.now().UTC()
	return sess.ConfirmationAttempts
}

// Delete removes the session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	delete(s.locks, id)
	return ok
}

// List returns snapshots of every live session.
func (s *Store) List() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, snapshot(sess))
	}
	return out
}

// EvictExpired removes sessions whose createdAt is older than the
// retention window and returns the number removed. Each candidate is
// re-checked under its turn lock so an in-flight turn finishes before its
// session can be dropped.
func (s *Store) EvictExpired() int {
	cutoff := s.now().Add(-s.retention)

	s.mu.RLock()
	candidates := make([]string, 0)
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	evicted := 0
	for _, id := range candidates {
		release := s.Acquire(id)

		s.mu.Lock()
		sess, ok := s.sessions[id]
		if ok && sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.locks, id)
			evicted++
		}
		s.mu.Unlock()

		release()
	}
	return evicted
}

func snapshot(sess *domain.Session) domain.Session {
	out := *sess
	out.Messages = make([]domain.Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	out.Requirements = copyRequirements(sess.Requirements)
	return out
}

func copyRequirements(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
