package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bchat/internal/domain/chat"
)

// ChatStore keeps conversations, memberships and messages in memory.
// Multi-row writes hold one lock, giving the same atomicity the Mongo
// store gets from upserts and transactions.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation
	byDirectKey   map[string]string
	members       map[string]map[string]chat.Membership
	messages      []chat.Message
	seq           uint64
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]*chat.Conversation),
		byDirectKey:   make(map[string]string),
		members:       make(map[string]map[string]chat.Membership),
	}
}

func (s *ChatStore) GetOrCreateDirect(ctx context.Context, selfID, otherID string, now time.Time) (*chat.Conversation, bool, error) {
	conv, err := chat.NewDirect(chat.DirectParams{
		ID:        uuid.NewString(),
		CreatedBy: selfID,
		OtherID:   otherID,
		Now:       now,
	})
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byDirectKey[conv.DirectKey]; ok {
		existing := *s.conversations[existingID]
		return &existing, false, nil
	}
	s.conversations[conv.ID] = conv
	s.byDirectKey[conv.DirectKey] = conv.ID
	s.members[conv.ID] = map[string]chat.Membership{
		selfID:  {ConversationID: conv.ID, ProfileID: strings.TrimSpace(selfID), JoinedAt: conv.CreatedAt},
		otherID: {ConversationID: conv.ID, ProfileID: strings.TrimSpace(otherID), JoinedAt: conv.CreatedAt},
	}
	clone := *conv
	return &clone, true, nil
}

func (s *ChatStore) CreateGroup(ctx context.Context, conv *chat.Conversation, memberIDs []string) error {
	if conv == nil || conv.ID == "" {
		return chat.ErrConversationIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *conv
	s.conversations[conv.ID] = &clone
	membership := make(map[string]chat.Membership, len(memberIDs))
	for _, id := range memberIDs {
		membership[id] = chat.Membership{ConversationID: conv.ID, ProfileID: id, JoinedAt: conv.CreatedAt}
	}
	s.members[conv.ID] = membership
	return nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	clone := *conv
	return &clone, nil
}

func (s *ChatStore) ConversationsFor(ctx context.Context, profileID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for id, membership := range s.members {
		if _, ok := membership[profileID]; !ok {
			continue
		}
		if conv, ok := s.conversations[id]; ok {
			out = append(out, *conv)
		}
	}
	// Newest activity first, matching the sidebar ordering.
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ChatStore) Members(ctx context.Context, conversationID string) ([]chat.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	membership, ok := s.members[conversationID]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	out := make([]chat.Membership, 0, len(membership))
	for _, m := range membership {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg *chat.Message) error {
	if msg == nil || msg.ID == "" {
		return chat.ErrMessageIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ConversationID != "" {
		conv, ok := s.conversations[msg.ConversationID]
		if !ok {
			return chat.ErrConversationNotFound
		}
		conv.Touch(msg.CreatedAt)
	}
	s.seq++
	msg.Seq = s.seq
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *ChatStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]chat.Message, 0)
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			matched = append(matched, msg)
		}
	}
	sortMessages(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *ChatStore) LastMessage(ctx context.Context, conversationID string) (*chat.Message, error) {
	msgs, err := s.RecentMessages(ctx, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// sortMessages orders by creation time, insertion sequence breaking ties.
func sortMessages(msgs []chat.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

var _ chat.Store = (*ChatStore)(nil)
