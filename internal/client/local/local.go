// Package local adapts the in-process application services to the
// client platform interfaces. It is what end-to-end tests and the
// single-binary demo run against, no network in between.
package local

import (
	"context"
	"sync"

	"bchat/internal/app/services/auth"
	chatsvc "bchat/internal/app/services/chat"
	directorysvc "bchat/internal/app/services/directory"
	"bchat/internal/client"
	"bchat/internal/domain/chat"
	"bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

// Adapter satisfies client.Authenticator and client.Tables on top of
// the application services.
type Adapter struct {
	Auth      *auth.Service
	Directory *directorysvc.Service
	Chat      *chatsvc.Service
}

func (a *Adapter) SignUp(ctx context.Context, email, password, displayName string) (*client.Account, error) {
	result, err := a.Auth.Register(ctx, auth.RegisterParams{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}
	return &client.Account{UserID: result.Profile.ID, Email: result.Identity.Email, Token: result.Token}, nil
}

func (a *Adapter) SignIn(ctx context.Context, email, password string) (*client.Account, error) {
	result, err := a.Auth.Login(ctx, auth.LoginParams{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return &client.Account{UserID: result.Profile.ID, Email: result.Identity.Email, Token: result.Token}, nil
}

func (a *Adapter) SignOut(ctx context.Context, token string) error {
	return a.Auth.Logout(ctx, token)
}

func (a *Adapter) Resolve(ctx context.Context, token string) (*client.Account, error) {
	result, err := a.Auth.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &client.Account{UserID: result.Identity.ID, Email: result.Identity.Email, Token: token}, nil
}

func (a *Adapter) Profile(ctx context.Context, id string) (*profile.Profile, error) {
	return a.Directory.ProfileByID(ctx, id)
}

func (a *Adapter) OnlineProfiles(ctx context.Context) ([]profile.Profile, error) {
	return a.Directory.OnlineProfiles(ctx)
}

func (a *Adapter) SetPresence(ctx context.Context, userID string, online bool) error {
	return a.Directory.SetPresence(ctx, userID, online)
}

func (a *Adapter) ConversationsFor(ctx context.Context, userID string) ([]chat.Conversation, error) {
	return a.Chat.ConversationsFor(ctx, userID)
}

func (a *Adapter) Members(ctx context.Context, conversationID string) ([]chat.Membership, error) {
	return a.Chat.Members(ctx, conversationID)
}

func (a *Adapter) LastMessage(ctx context.Context, conversationID string) (*chat.Message, error) {
	return a.Chat.LastMessage(ctx, conversationID)
}

func (a *Adapter) StartDirect(ctx context.Context, selfID, otherID string) (*chat.Conversation, error) {
	return a.Chat.StartDirect(ctx, selfID, otherID)
}

func (a *Adapter) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*chat.Conversation, error) {
	return a.Chat.CreateGroup(ctx, creatorID, name, memberIDs)
}

func (a *Adapter) RecentMessages(ctx context.Context, selfID, conversationID string, limit int) ([]chat.Message, error) {
	return a.Chat.RecentMessages(ctx, selfID, conversationID, limit)
}

func (a *Adapter) PostMessage(ctx context.Context, senderID, conversationID, content, imageURL string) (*chat.Message, error) {
	return a.Chat.PostMessage(ctx, chatsvc.PostMessageParams{
		SenderID:       senderID,
		ConversationID: conversationID,
		Content:        content,
		ImageURL:       imageURL,
	})
}

var (
	_ client.Authenticator = (*Adapter)(nil)
	_ client.Tables        = (*Adapter)(nil)
)

// Platform bundles the adapter with a feed source, storage and a token
// store into a ready client.Platform.
func Platform(adapter *Adapter, source feed.Source, storage client.Storage, tokens client.TokenStore) client.Platform {
	if tokens == nil {
		tokens = NewTokenStore()
	}
	return client.Platform{
		Auth:    adapter,
		Tables:  adapter,
		Feed:    source,
		Storage: storage,
		Tokens:  tokens,
	}
}

// TokenStore keeps the session token in memory.
type TokenStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set
}

func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.set = true
	s.mu.Unlock()
	return nil
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.set = false
	s.mu.Unlock()
	return nil
}

var _ client.TokenStore = (*TokenStore)(nil)
