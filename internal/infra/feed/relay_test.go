package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"bchat/internal/domain/chat"
	"bchat/internal/infra/feed"
)

func TestRelayIgnoresOwnOrigin(t *testing.T) {
	t.Parallel()

	hub := feed.NewHub("node-a", nil)
	defer hub.Close()
	relay := &feed.Relay{Hub: hub}
	sub := hub.Subscribe(feed.TableMessages, nil, feed.Filter{})
	defer sub.Close()

	local, err := feed.MarshalEvent(feed.Event{
		Table:  feed.TableMessages,
		Type:   feed.Insert,
		Origin: "node-a",
		Row:    &chat.Message{ID: "m1", SenderID: "alice", Content: "hi", CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("MarshalEvent() unexpected error: %v", err)
	}
	remote, err := feed.MarshalEvent(feed.Event{
		Table:  feed.TableMessages,
		Type:   feed.Insert,
		Origin: "node-b",
		Row:    &chat.Message{ID: "m2", SenderID: "bob", Content: "yo", CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("MarshalEvent() unexpected error: %v", err)
	}

	if err := relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: local}); err != nil {
		t.Fatalf("Handle(local) unexpected error: %v", err)
	}
	if err := relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: remote}); err != nil {
		t.Fatalf("Handle(remote) unexpected error: %v", err)
	}

	select {
	case ev := <-sub.Events():
		msg, _ := ev.Message()
		if msg == nil || msg.ID != "m2" {
			t.Fatalf("expected only the remote event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("remote event was not injected into the hub")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("echoed local event was delivered: %+v", ev)
	default:
	}
}
