package research

import (
	"sync"
	"time"
)

// FactListener observes appends. Seq is the 1-based position in the store and
// listeners are called in seq order. Listeners must not call back into the store.
type FactListener func(seq int, fact Fact)

// FactStore is an append-only, session-scoped fact log. The zero value is
// ready to use and safe for concurrent Append.
type FactStore struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	facts     []Fact
	last      time.Time
	listeners []FactListener

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func NewFactStore() *FactStore {
	return &FactStore{}
}

// OnAppend registers l for every future append.
func (s *FactStore) OnAppend(l FactListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Append records fact and returns a confirmation that echoes it.
// Input is stored as given; duplicates and empty facts are kept.
func (s *FactStore) Append(fact, source string) string {
	s.mu.Lock()
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	// Never go backwards, even if the wall clock does.
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now

	f := Fact{
		Fact:       fact,
		Source:     source,
		Timestamp:  now.Format(FactTimeLayout),
		RecordedAt: now,
	}
	s.facts = append(s.facts, f)
	seq := len(s.facts)
	listeners := append([]FactListener(nil), s.listeners...)
	// Taken before releasing mu so listeners run in seq order.
	s.notifyMu.Lock()
	s.mu.Unlock()

	for _, l := range listeners {
		l(seq, f)
	}
	s.notifyMu.Unlock()
	return "Fact saved: " + fact
}

// List returns a snapshot in append order.
func (s *FactStore) List() []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Fact(nil), s.facts...)
}

func (s *FactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}
