package client

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNoSession       = errors.New("client: no active session")
	ErrSessionResumed  = errors.New("client: session already active")
	ErrTokensRequired  = errors.New("client: token store required")
	ErrPlatformMissing = errors.New("client: platform auth required")
)

// SessionManager owns the authenticated session. It resumes a stored
// token on startup, signs in and out, and keeps the user's presence
// flag in step with the session lifecycle.
type SessionManager struct {
	platform Platform

	mu          sync.Mutex
	account     *Account
	presenceSet bool
}

func NewSessionManager(platform Platform) *SessionManager {
	return &SessionManager{platform: platform}
}

// Resume restores the session from a previously stored token. Returns
// ErrNoSession when no usable token exists.
func (m *SessionManager) Resume(ctx context.Context) (*Account, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	token, ok := m.platform.Tokens.Load()
	if !ok || token == "" {
		return nil, ErrNoSession
	}
	account, err := m.platform.Auth.Resolve(ctx, token)
	if err != nil {
		// A stale token is dropped so the next start goes straight to
		// the sign-in flow.
		_ = m.platform.Tokens.Clear()
		return nil, ErrNoSession
	}
	return m.adopt(ctx, account)
}

func (m *SessionManager) SignUp(ctx context.Context, email, password, displayName string) (*Account, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	account, err := m.platform.Auth.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, account)
}

func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*Account, error) {
	if err := m.ensure(); err != nil {
		return nil, err
	}
	account, err := m.platform.Auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, account)
}

// SignOut marks the user offline exactly once, revokes the session and
// clears the stored token. Idempotent.
func (m *SessionManager) SignOut(ctx context.Context) error {
	if err := m.ensure(); err != nil {
		return err
	}
	m.mu.Lock()
	account := m.account
	presenceSet := m.presenceSet
	m.account = nil
	m.presenceSet = false
	m.mu.Unlock()

	if account == nil {
		return nil
	}
	if presenceSet {
		_ = m.platform.Tables.SetPresence(ctx, account.UserID, false)
	}
	if err := m.platform.Auth.SignOut(ctx, account.Token); err != nil {
		return err
	}
	return m.platform.Tokens.Clear()
}

// Current returns the active account, if any.
func (m *SessionManager) Current() (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return Account{}, false
	}
	return *m.account, true
}

// Heartbeat refreshes the presence timestamp. Callers run it on a
// timer while the session is active.
func (m *SessionManager) Heartbeat(ctx context.Context) error {
	m.mu.Lock()
	account := m.account
	m.mu.Unlock()
	if account == nil {
		return ErrNoSession
	}
	return m.platform.Tables.SetPresence(ctx, account.UserID, true)
}

func (m *SessionManager) adopt(ctx context.Context, account *Account) (*Account, error) {
	if err := m.platform.Tokens.Save(account.Token); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.account = account
	m.presenceSet = true
	m.mu.Unlock()

	// Presence is advisory, a failed update must not block sign-in.
	_ = m.platform.Tables.SetPresence(ctx, account.UserID, true)
	out := *account
	return &out, nil
}

func (m *SessionManager) ensure() error {
	if m.platform.Auth == nil || m.platform.Tables == nil {
		return ErrPlatformMissing
	}
	if m.platform.Tokens == nil {
		return ErrTokensRequired
	}
	return nil
}
