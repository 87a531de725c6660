package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainchat "bchat/internal/domain/chat"
	"bchat/internal/infra/feed"
)

var ErrNotMember = errors.New("chat: not a conversation member")

// Service orchestrates conversation and message writes and announces
// every committed row on the change feed.
type Service struct {
	Store  domainchat.Store
	Feed   feed.Publisher
	Logger *slog.Logger
}

// StartDirect resolves the one direct conversation for {self, other},
// creating it atomically when absent. Safe to call concurrently from
// both sides: the store-level get-or-create guarantees a single winner.
func (s *Service) StartDirect(ctx context.Context, selfID, otherID string) (*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	conv, created, err := s.Store.GetOrCreateDirect(ctx, selfID, otherID, time.Now())
	if err != nil {
		return nil, err
	}
	if created {
		s.publish(feed.TableConversations, feed.Insert, conv)
		for _, memberID := range []string{selfID, otherID} {
			s.publish(feed.TableMemberships, feed.Insert, &domainchat.Membership{
				ConversationID: conv.ID,
				ProfileID:      memberID,
				JoinedAt:       conv.CreatedAt,
			})
		}
		if s.Logger != nil {
			s.Logger.Info("direct conversation created", "conversation_id", conv.ID)
		}
	}
	return conv, nil
}

// CreateGroup validates the group parameters and creates the
// conversation with all memberships in one store transaction.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	conv, members, err := domainchat.NewGroup(domainchat.GroupParams{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: creatorID,
		MemberIDs: memberIDs,
		Now:       time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateGroup(ctx, conv, members); err != nil {
		return nil, err
	}
	s.publish(feed.TableConversations, feed.Insert, conv)
	for _, memberID := range members {
		s.publish(feed.TableMemberships, feed.Insert, &domainchat.Membership{
			ConversationID: conv.ID,
			ProfileID:      memberID,
			JoinedAt:       conv.CreatedAt,
		})
	}
	if s.Logger != nil {
		s.Logger.Info("group created", "conversation_id", conv.ID, "members", len(members))
	}
	return conv, nil
}

type PostMessageParams struct {
	SenderID       string
	ConversationID string
	Content        string
	ImageURL       string
}

// PostMessage appends to the conversation log. Validation happens
// before any write: empty messages never reach the store.
func (s *Service) PostMessage(ctx context.Context, params PostMessageParams) (*domainchat.Message, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:             uuid.NewString(),
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Content:        params.Content,
		ImageURL:       params.ImageURL,
		Now:            time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != "" {
		member, err := s.isMember(ctx, msg.ConversationID, msg.SenderID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrNotMember
		}
	}
	if err := s.Store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.publish(feed.TableMessages, feed.Insert, msg)
	if msg.ConversationID != "" {
		if conv, err := s.Store.ConversationByID(ctx, msg.ConversationID); err == nil {
			s.publish(feed.TableConversations, feed.Update, conv)
		}
	}
	return msg, nil
}

func (s *Service) ConversationByID(ctx context.Context, id string) (*domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Store.ConversationByID(ctx, id)
}

func (s *Service) ConversationsFor(ctx context.Context, profileID string) ([]domainchat.Conversation, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Store.ConversationsFor(ctx, profileID)
}

func (s *Service) Members(ctx context.Context, conversationID string) ([]domainchat.Membership, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Store.Members(ctx, conversationID)
}

// RecentMessages returns the newest limit messages oldest-first. The
// caller must be a member unless the shared room is targeted.
func (s *Service) RecentMessages(ctx context.Context, requesterID, conversationID string, limit int) ([]domainchat.Message, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if conversationID != "" {
		member, err := s.isMember(ctx, conversationID, requesterID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrNotMember
		}
	}
	return s.Store.RecentMessages(ctx, conversationID, limit)
}

func (s *Service) LastMessage(ctx context.Context, conversationID string) (*domainchat.Message, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Store.LastMessage(ctx, conversationID)
}

func (s *Service) isMember(ctx context.Context, conversationID, profileID string) (bool, error) {
	members, err := s.Store.Members(ctx, conversationID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.ProfileID == profileID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) publish(table feed.Table, eventType feed.EventType, row any) {
	if s.Feed == nil {
		return
	}
	s.Feed.Publish(feed.Event{Table: table, Type: eventType, Row: row})
}

func (s *Service) ensureDependencies() error {
	if s.Store == nil {
		return errors.New("chat: store required")
	}
	return nil
}
