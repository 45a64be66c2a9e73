package redis

import (
	"context"
	"sync"
	"time"

	"trivia-quiz/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions (and their countdowns) stay in process; Redis only carries a
//     liveness key per active player so other instances and operators can see
//     who is playing.
//   - The liveness key is refreshed whenever the session is looked up, so an
//     abandoned session simply expires.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(sessionID string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = app.NewSession(sessionID)
		s.sessions[sessionID] = session
	}
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(sessionID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Active lists the players with a live session key, across all instances.
func (s *SessionStore) Active(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		ids    []string
	)
	prefix := s.key("")
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(prefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "trivia:session:" + sessionID
}
