package api

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samcharles93/trinity/internal/logger"
	"github.com/samcharles93/trinity/internal/session"
)

// DefaultIdleTTL is how long a session survives without being touched.
const DefaultIdleTTL = 30 * time.Minute

type sessionEntry struct {
	// mu serializes Send and Truncate; a Session is not safe for concurrent use.
	mu        sync.Mutex
	session   *session.Session
	createdAt time.Time
}

// SessionStore keeps live sessions in memory. Every lookup pushes the
// expiry of the session back by the idle TTL.
type SessionStore struct {
	cache *ttlcache.Cache[string, *sessionEntry]
	log   logger.Logger
	once  sync.Once
}

func NewSessionStore(idleTTL time.Duration, log logger.Logger) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	c := ttlcache.New[string, *sessionEntry](
		ttlcache.WithTTL[string, *sessionEntry](idleTTL),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *sessionEntry]) {
		if reason == ttlcache.EvictionReasonExpired {
			log.Debug("session expired", "session_id", item.Key())
		}
	})
	go c.Start()
	return &SessionStore{cache: c, log: log}
}

func (s *SessionStore) Put(sess *session.Session, now time.Time) *sessionEntry {
	entry := &sessionEntry{session: sess, createdAt: now}
	s.cache.Set(sess.ID(), entry, ttlcache.DefaultTTL)
	return entry
}

func (s *SessionStore) Get(id string) (*sessionEntry, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *SessionStore) Delete(id string) bool {
	if !s.cache.Has(id) {
		return false
	}
	s.cache.Delete(id)
	return true
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop. The store must not be used afterwards.
func (s *SessionStore) Close() {
	s.once.Do(s.cache.Stop)
}
