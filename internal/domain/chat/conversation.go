package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrConversationIDRequired = errors.New("chat: conversation id is required")
	ErrCreatorRequired        = errors.New("chat: creator is required")
	ErrGroupNameRequired      = errors.New("chat: group name is required")
	ErrMembersRequired        = errors.New("chat: a group needs at least one member besides the creator")
	ErrSelfConversation       = errors.New("chat: cannot start a conversation with yourself")
	ErrConversationNotFound   = errors.New("chat: conversation not found")
)

// Conversation is a direct (2-party) or group (N-party) messaging context.
// Direct conversations are uniquely keyed by the unordered member pair.
type Conversation struct {
	ID        string
	Name      string
	IsGroup   bool
	CreatedBy string
	DirectKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership associates one profile with one conversation.
type Membership struct {
	ConversationID string
	ProfileID      string
	JoinedAt       time.Time
}

// DirectKey derives the canonical key for the unordered pair, so at most
// one direct conversation can exist per pair.
func DirectKey(a, b string) string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

type DirectParams struct {
	ID        string
	CreatedBy string
	OtherID   string
	Now       time.Time
}

func NewDirect(params DirectParams) (*Conversation, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, ErrConversationIDRequired
	}
	creator := strings.TrimSpace(params.CreatedBy)
	other := strings.TrimSpace(params.OtherID)
	if creator == "" {
		return nil, ErrCreatorRequired
	}
	if other == "" || other == creator {
		return nil, ErrSelfConversation
	}
	now := normalizeTime(params.Now)
	return &Conversation{
		ID:        id,
		IsGroup:   false,
		CreatedBy: creator,
		DirectKey: DirectKey(creator, other),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type GroupParams struct {
	ID        string
	Name      string
	CreatedBy string
	MemberIDs []string
	Now       time.Time
}

func NewGroup(params GroupParams) (*Conversation, []string, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, nil, ErrConversationIDRequired
	}
	creator := strings.TrimSpace(params.CreatedBy)
	if creator == "" {
		return nil, nil, ErrCreatorRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, nil, ErrGroupNameRequired
	}
	members := normalizeMembers(creator, params.MemberIDs)
	if len(members) < 2 {
		return nil, nil, ErrMembersRequired
	}
	now := normalizeTime(params.Now)
	return &Conversation{
		ID:        id,
		Name:      name,
		IsGroup:   true,
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}, members, nil
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = normalizeTime(now)
}

// normalizeMembers dedupes and guarantees the creator is first.
func normalizeMembers(creator string, ids []string) []string {
	seen := map[string]struct{}{creator: {}}
	members := []string{creator}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}

// Store persists conversations, memberships and messages. Both writes
// that span rows (direct get-or-create, group create) are atomic at the
// store level; callers never read-then-write.
type Store interface {
	// GetOrCreateDirect resolves the single conversation for the pair,
	// creating it together with both memberships when absent. The
	// returned flag reports whether a new conversation was created.
	GetOrCreateDirect(ctx context.Context, selfID, otherID string, now time.Time) (*Conversation, bool, error)
	// CreateGroup inserts the conversation and one membership per member
	// in a single transaction.
	CreateGroup(ctx context.Context, conv *Conversation, memberIDs []string) error
	ConversationByID(ctx context.Context, id string) (*Conversation, error)
	ConversationsFor(ctx context.Context, profileID string) ([]Conversation, error)
	Members(ctx context.Context, conversationID string) ([]Membership, error)
	// AppendMessage stores the message, assigns its insertion sequence
	// and bumps the parent conversation's updated_at when it has one.
	AppendMessage(ctx context.Context, msg *Message) error
	// RecentMessages returns the newest limit messages ordered
	// oldest-first. An empty conversation id targets the shared room.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	LastMessage(ctx context.Context, conversationID string) (*Message, error)
}
