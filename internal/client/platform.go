// Package client implements the chat client core: session lifecycle,
// the online-profile directory, the conversation index, live message
// streams and the message composer. It talks to the platform through
// narrow interfaces so the same core runs against the in-process
// services in tests and against a remote deployment in production.
package client

import (
	"context"
	"io"

	"bchat/internal/domain/chat"
	"bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

// Account is an authenticated user as seen by the client.
type Account struct {
	UserID string
	Email  string
	Token  string
}

type Authenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (*Account, error)
	SignIn(ctx context.Context, email, password string) (*Account, error)
	SignOut(ctx context.Context, token string) error
	// Resolve validates a stored token and returns its account.
	Resolve(ctx context.Context, token string) (*Account, error)
}

// Tables exposes the table reads and writes the client needs.
type Tables interface {
	Profile(ctx context.Context, id string) (*profile.Profile, error)
	OnlineProfiles(ctx context.Context) ([]profile.Profile, error)
	SetPresence(ctx context.Context, userID string, online bool) error

	ConversationsFor(ctx context.Context, userID string) ([]chat.Conversation, error)
	Members(ctx context.Context, conversationID string) ([]chat.Membership, error)
	LastMessage(ctx context.Context, conversationID string) (*chat.Message, error)
	StartDirect(ctx context.Context, selfID, otherID string) (*chat.Conversation, error)
	CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*chat.Conversation, error)

	RecentMessages(ctx context.Context, selfID, conversationID string, limit int) ([]chat.Message, error)
	PostMessage(ctx context.Context, senderID, conversationID, content, imageURL string) (*chat.Message, error)
}

// Storage uploads binary content and returns a public URL.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, bool)
	Save(token string) error
	Clear() error
}

// Platform bundles everything the client core depends on.
type Platform struct {
	Auth    Authenticator
	Tables  Tables
	Feed    feed.Source
	Storage Storage
	Tokens  TokenStore
}

// MessageWindow is how many messages a stream loads on open.
const MessageWindow = 100
