package memory

import (
	"context"
	"sync"
	"time"

	"bchat/internal/domain/auth"
)

// SessionStore keeps session tokens in memory. Expired sessions are
// dropped lazily on lookup.
type SessionStore struct {
	mu       sync.RWMutex
	byToken  map[auth.Token]*auth.Session
	byUserID map[string]map[auth.Token]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken:  make(map[auth.Token]*auth.Session),
		byUserID: make(map[string]map[auth.Token]struct{}),
	}
}

func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	if session == nil || session.Token == "" {
		return auth.ErrTokenRequired
	}
	clone := *session
	s.mu.Lock()
	s.byToken[session.Token] = &clone
	tokens := s.byUserID[session.UserID]
	if tokens == nil {
		tokens = make(map[auth.Token]struct{})
		s.byUserID[session.UserID] = tokens
	}
	tokens[session.Token] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token auth.Token) (*auth.Session, error) {
	s.mu.RLock()
	session, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	if session.Expired(time.Now()) {
		_ = s.Delete(ctx, token)
		return nil, auth.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *SessionStore) Delete(ctx context.Context, token auth.Token) error {
	s.mu.Lock()
	if session, ok := s.byToken[token]; ok {
		delete(s.byToken, token)
		if tokens := s.byUserID[session.UserID]; tokens != nil {
			delete(tokens, token)
			if len(tokens) == 0 {
				delete(s.byUserID, session.UserID)
			}
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	for token := range s.byUserID[userID] {
		delete(s.byToken, token)
	}
	delete(s.byUserID, userID)
	s.mu.Unlock()
	return nil
}
