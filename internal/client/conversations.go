package client

import (
	"context"
	"sync"
	"time"

	"bchat/internal/domain/chat"
	"bchat/internal/infra/feed"
)

// Display fallbacks for conversations without a stored name.
const (
	GroupFallbackTitle  = "Group Chat"
	DirectFallbackTitle = "Direct Message"
)

// ConversationView is a conversation resolved for display.
type ConversationView struct {
	ID          string
	Title       string
	IsGroup     bool
	MemberIDs   []string
	LastMessage *chat.Message
	UpdatedAt   time.Time
}

// ConversationIndex keeps the user's conversation list current. Any
// change to conversations, memberships or messages triggers a full
// refetch of the list.
type ConversationIndex struct {
	platform Platform
	selfID   string

	mu      sync.Mutex
	views   []ConversationView
	subs    []feed.Subscription
	updates chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	opened  bool
}

func NewConversationIndex(platform Platform, selfID string) *ConversationIndex {
	return &ConversationIndex{platform: platform, selfID: selfID}
}

func (ix *ConversationIndex) Open(ctx context.Context) error {
	ix.mu.Lock()
	if ix.opened {
		ix.mu.Unlock()
		return nil
	}
	ix.opened = true
	ix.updates = make(chan struct{}, 1)
	ix.done = make(chan struct{})
	for _, table := range []feed.Table{feed.TableConversations, feed.TableMemberships, feed.TableMessages} {
		ix.subs = append(ix.subs, ix.platform.Feed.Subscribe(table, nil, feed.Filter{}))
	}
	subs := ix.subs
	ix.mu.Unlock()

	if err := ix.refetch(ctx); err != nil {
		ix.Close()
		return err
	}

	for _, sub := range subs {
		ix.wg.Add(1)
		go ix.follow(ctx, sub)
	}
	return nil
}

func (ix *ConversationIndex) Snapshot() []ConversationView {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]ConversationView, len(ix.views))
	copy(out, ix.views)
	return out
}

func (ix *ConversationIndex) Updates() <-chan struct{} {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.updates
}

// StartDirect opens (or finds) the direct conversation with the other
// profile. The feed event it causes refreshes the list.
func (ix *ConversationIndex) StartDirect(ctx context.Context, otherID string) (*chat.Conversation, error) {
	return ix.platform.Tables.StartDirect(ctx, ix.selfID, otherID)
}

func (ix *ConversationIndex) CreateGroup(ctx context.Context, name string, memberIDs []string) (*chat.Conversation, error) {
	return ix.platform.Tables.CreateGroup(ctx, ix.selfID, name, memberIDs)
}

func (ix *ConversationIndex) Close() {
	ix.mu.Lock()
	if !ix.opened {
		ix.mu.Unlock()
		return
	}
	ix.opened = false
	subs := ix.subs
	done := ix.done
	ix.subs = nil
	ix.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	close(done)
	ix.wg.Wait()
}

func (ix *ConversationIndex) follow(ctx context.Context, sub feed.Subscription) {
	defer ix.wg.Done()
	for {
		select {
		case <-ix.done:
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := ix.refetch(ctx); err != nil {
				continue
			}
			ix.notify()
		}
	}
}

func (ix *ConversationIndex) refetch(ctx context.Context) error {
	convs, err := ix.platform.Tables.ConversationsFor(ctx, ix.selfID)
	if err != nil {
		return err
	}
	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		view := ConversationView{
			ID:        convs[i].ID,
			IsGroup:   convs[i].IsGroup,
			UpdatedAt: convs[i].UpdatedAt,
		}
		members, err := ix.platform.Tables.Members(ctx, convs[i].ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			view.MemberIDs = append(view.MemberIDs, m.ProfileID)
		}
		view.Title = ix.resolveTitle(ctx, &convs[i], view.MemberIDs)
		last, err := ix.platform.Tables.LastMessage(ctx, convs[i].ID)
		if err != nil {
			return err
		}
		view.LastMessage = last
		views = append(views, view)
	}
	ix.mu.Lock()
	ix.views = views
	ix.mu.Unlock()
	return nil
}

func (ix *ConversationIndex) notify() {
	ix.mu.Lock()
	updates := ix.updates
	ix.mu.Unlock()
	select {
	case updates <- struct{}{}:
	default:
	}
}

// resolveTitle picks the display name: the stored name when present, the
// other member's display name for directs, the literal fallbacks last.
func (ix *ConversationIndex) resolveTitle(ctx context.Context, conv *chat.Conversation, memberIDs []string) string {
	if conv.Name != "" {
		return conv.Name
	}
	if conv.IsGroup {
		return GroupFallbackTitle
	}
	for _, id := range memberIDs {
		if id == ix.selfID {
			continue
		}
		other, err := ix.platform.Tables.Profile(ctx, id)
		if err != nil || other == nil || other.DisplayName == "" {
			continue
		}
		return other.DisplayName
	}
	return DirectFallbackTitle
}
