package client

import (
	"context"
	"sort"
	"sync"

	"bchat/internal/domain/chat"
	"bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

// MessageView pairs a message with its sender's profile. Sender is nil
// when the profile could not be resolved.
type MessageView struct {
	Message chat.Message
	Sender  *profile.Profile
}

// MessageStream is the live view of one conversation: the newest
// window of history plus every insert that follows. The subscription
// is opened before the history fetch so no message can fall between
// the two, duplicates are dropped by id.
type MessageStream struct {
	platform       Platform
	selfID         string
	conversationID string

	mu      sync.Mutex
	views   []MessageView
	seen    map[string]struct{}
	senders map[string]*profile.Profile
	sub     feed.Subscription
	updates chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	opened  bool
}

func OpenMessageStream(ctx context.Context, platform Platform, selfID, conversationID string) (*MessageStream, error) {
	s := &MessageStream{
		platform:       platform,
		selfID:         selfID,
		conversationID: conversationID,
		seen:           make(map[string]struct{}),
		senders:        make(map[string]*profile.Profile),
		updates:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	s.sub = platform.Feed.Subscribe(
		feed.TableMessages,
		[]feed.EventType{feed.Insert},
		feed.Filter{ConversationID: conversationID},
	)

	history, err := platform.Tables.RecentMessages(ctx, selfID, conversationID, MessageWindow)
	if err != nil {
		s.sub.Close()
		return nil, err
	}
	for i := range history {
		s.append(ctx, history[i])
	}
	s.opened = true

	s.wg.Add(1)
	go s.follow(ctx)
	return s, nil
}

// Snapshot returns the stream's messages oldest-first.
func (s *MessageStream) Snapshot() []MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageView, len(s.views))
	copy(out, s.views)
	return out
}

func (s *MessageStream) Updates() <-chan struct{} {
	return s.updates
}

func (s *MessageStream) ConversationID() string {
	return s.conversationID
}

// Close tears the stream down synchronously. Once it returns no event
// from this conversation is delivered or applied, which is what makes
// switching conversations safe.
func (s *MessageStream) Close() {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return
	}
	s.opened = false
	s.mu.Unlock()

	s.sub.Close()
	close(s.done)
	s.wg.Wait()
}

func (s *MessageStream) follow(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			msg, ok := ev.Message()
			if !ok || msg.ConversationID != s.conversationID {
				continue
			}
			s.mu.Lock()
			applied := s.appendLocked(ctx, *msg)
			s.mu.Unlock()
			if applied {
				s.notify()
			}
		}
	}
}

func (s *MessageStream) append(ctx context.Context, msg chat.Message) {
	s.mu.Lock()
	s.appendLocked(ctx, msg)
	s.mu.Unlock()
}

func (s *MessageStream) appendLocked(ctx context.Context, msg chat.Message) bool {
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.views = append(s.views, MessageView{
		Message: msg,
		Sender:  s.senderLocked(ctx, msg.SenderID),
	})
	// Feed delivery order can lag the store order when history and the
	// live stream overlap, so keep the list sorted.
	sort.SliceStable(s.views, func(i, j int) bool {
		a, b := s.views[i].Message, s.views[j].Message
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.Seq < b.Seq
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return true
}

func (s *MessageStream) senderLocked(ctx context.Context, senderID string) *profile.Profile {
	if cached, ok := s.senders[senderID]; ok {
		return cached
	}
	sender, err := s.platform.Tables.Profile(ctx, senderID)
	if err != nil {
		sender = nil
	}
	s.senders[senderID] = sender
	return sender
}

func (s *MessageStream) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
