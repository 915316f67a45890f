package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/models"
)

// DefaultTTL is the inactivity window after which a session is treated
// as fresh on next contact.
const DefaultTTL = 24 * time.Hour

type entry struct {
	session      *models.Session
	lastAccessed time.Time
}

// MemoryStore is the in-process session store. Expiry is enforced lazily
// on Get; StartCleanup adds a periodic sweep on top.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.sessions[id]
	if !exists {
		return nil, false, nil
	}
	if s.now().Sub(e.lastAccessed) >= s.ttl {
		delete(s.sessions, id)
		return nil, false, nil
	}
	e.lastAccessed = s.now()
	return e.session, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = s.now()
	s.sessions[sess.ID] = &entry{session: sess, lastAccessed: s.now()}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Cleanup removes every expired session and returns how many were dropped.
func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if !e.lastAccessed.After(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartCleanup sweeps expired sessions on the given interval until the
// context is cancelled.
func StartCleanup(ctx context.Context, store Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Session cleanup stopped")
				return
			case <-ticker.C:
				count, err := store.Cleanup(ctx)
				if err != nil {
					logger.Error("Failed to cleanup expired sessions", zap.Error(err))
				} else if count > 0 {
					logger.Info("Cleaned up expired sessions", zap.Int("count", count))
				}
			}
		}
	}()
}
