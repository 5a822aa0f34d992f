package store

import (
	"context"
	"sync"
	"time"

	"research-agent-be/pkg/research"

	"github.com/google/uuid"
)

// Session is the per-user research state. It lives in memory only and ends
// when deleted or when it idles past its TTL.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu     sync.Mutex
	facts  *research.FactStore
	run    *research.Workflow
	cancel context.CancelFunc
	ended  bool

	onFactStore func(*research.FactStore)
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}

// OnFactStoreCreated lets the owner hook listeners onto the lazily created store.
func (s *Session) OnFactStoreCreated(fn func(*research.FactStore)) {
	s.mu.Lock()
	s.onFactStore = fn
	s.mu.Unlock()
}

// Facts returns the session's fact store, creating it on first use.
func (s *Session) Facts() *research.FactStore {
	s.mu.Lock()
	if s.facts != nil {
		f := s.facts
		s.mu.Unlock()
		return f
	}
	s.facts = research.NewFactStore()
	f, hook := s.facts, s.onFactStore
	s.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return f
}

// FactList returns saved facts without forcing the store into existence.
func (s *Session) FactList() []research.Fact {
	s.mu.Lock()
	f := s.facts
	s.mu.Unlock()
	if f == nil {
		return []research.Fact{}
	}
	return f.List()
}

// BeginRun makes wf the session's current run. Only one run may be active.
func (s *Session) BeginRun(wf *research.Workflow, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return research.ErrSessionNotFound
	}
	if s.run != nil && !s.run.State().Terminal() {
		return research.ErrRunInProgress
	}
	s.run = wf
	s.cancel = cancel
	return nil
}

// Run returns the current or most recent run, if any.
func (s *Session) Run() *research.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// End cancels any in-flight run. Facts stay readable until the session is dropped.
func (s *Session) End() {
	s.mu.Lock()
	cancel := s.cancel
	s.ended = true
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
