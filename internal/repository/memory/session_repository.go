package memory

import (
	"time"

	"research-agent-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

// NewSessionRepository keeps idle sessions for ttl. Expired or deleted
// sessions are ended, which cancels their in-flight run.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	c := cache.New(ttl, ttl/6+time.Second)
	c.OnEvicted(func(_ string, x interface{}) {
		if s, ok := x.(*store.Session); ok {
			s.End()
		}
	})
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID.String(), session, cache.DefaultExpiration)
}

// Get also refreshes the session's expiry.
func (r *SessionRepository) Get(sessionID uuid.UUID) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID.String()); found {
		s := x.(*store.Session)
		r.cache.Set(sessionID.String(), s, cache.DefaultExpiration)
		return s, true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID uuid.UUID) {
	r.cache.Delete(sessionID.String())
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
