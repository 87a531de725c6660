package client_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	authsvc "bchat/internal/app/services/auth"
	chatsvc "bchat/internal/app/services/chat"
	directorysvc "bchat/internal/app/services/directory"
	"bchat/internal/client"
	"bchat/internal/client/local"
	"bchat/internal/domain/chat"
	"bchat/internal/infra/feed"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
)

type fixture struct {
	platform client.Platform
	hub      *feed.Hub
	adapter  *local.Adapter
	storage  *local.MemoryStorage
}

// newFixture wires the full in-process stack the way the demo binary
// does: memory stores, the change-feed hub and the local adapter.
func newFixture(t *testing.T) fixture {
	t.Helper()
	hub := feed.NewHub("test", nil)
	t.Cleanup(hub.Close)
	profiles := memory.NewProfileRepository()
	directory := &directorysvc.Service{Profiles: profiles, Feed: hub}
	adapter := &local.Adapter{
		Auth: &authsvc.Service{
			Identities: memory.NewIdentityRepository(),
			Profiles:   profiles,
			Sessions:   memory.NewSessionStore(),
			Passwords:  security.BcryptHasher{},
			Tokens:     security.RandomTokenGenerator{},
			Feed:       hub,
			SessionTTL: time.Hour,
		},
		Directory: directory,
		Chat:      &chatsvc.Service{Store: memory.NewChatStore(), Feed: hub},
	}
	storage := local.NewMemoryStorage()
	return fixture{
		platform: local.Platform(adapter, hub, storage, local.NewTokenStore()),
		hub:      hub,
		adapter:  adapter,
		storage:  storage,
	}
}

// signUp registers a user behind its own session manager, mimicking one
// browser with its own token store.
func signUp(ctx context.Context, t *testing.T, fx fixture, email string) (*client.SessionManager, *client.Account) {
	t.Helper()
	platform := fx.platform
	platform.Tokens = local.NewTokenStore()
	manager := client.NewSessionManager(platform)
	account, err := manager.SignUp(ctx, email, "correct-horse", "")
	if err != nil {
		t.Fatalf("SignUp(%q) unexpected error: %v", email, err)
	}
	return manager, account
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	manager, account := signUp(ctx, t, fx, "alice@example.com")

	if current, ok := manager.Current(); !ok || current.UserID != account.UserID {
		t.Fatalf("Current() = %v, %v, want the signed-up account", current, ok)
	}
	online, err := fx.adapter.OnlineProfiles(ctx)
	if err != nil {
		t.Fatalf("OnlineProfiles() unexpected error: %v", err)
	}
	if len(online) != 1 || online[0].ID != account.UserID {
		t.Fatalf("online = %v, want exactly the new user", online)
	}
	if err := manager.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat() unexpected error: %v", err)
	}

	sub := fx.hub.Subscribe(feed.TableProfiles, []feed.EventType{feed.Update}, feed.Filter{})
	defer sub.Close()

	if err := manager.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() unexpected error: %v", err)
	}
	// A second sign-out is a no-op, the offline transition happens once.
	if err := manager.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() repeat unexpected error: %v", err)
	}

	offline := 0
	for drained := false; !drained; {
		select {
		case ev := <-sub.Events():
			if p, ok := ev.Profile(); ok && p.ID == account.UserID && !p.Online {
				offline++
			}
		default:
			drained = true
		}
	}
	if offline != 1 {
		t.Errorf("offline transitions = %d, want exactly 1", offline)
	}
	if _, ok := manager.Current(); ok {
		t.Error("Current() still reports an account after sign-out")
	}
	if err := manager.Heartbeat(ctx); !errors.Is(err, client.ErrNoSession) {
		t.Errorf("Heartbeat() after sign-out = %v, want ErrNoSession", err)
	}
}

func TestResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("restores a stored session", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		platform := fx.platform
		platform.Tokens = local.NewTokenStore()

		first := client.NewSessionManager(platform)
		account, err := first.SignUp(ctx, "carol@example.com", "correct-horse", "Carol")
		if err != nil {
			t.Fatalf("SignUp() unexpected error: %v", err)
		}

		// A fresh manager over the same token store plays a restarted tab.
		second := client.NewSessionManager(platform)
		resumed, err := second.Resume(ctx)
		if err != nil {
			t.Fatalf("Resume() unexpected error: %v", err)
		}
		if resumed.UserID != account.UserID || resumed.Email != account.Email {
			t.Errorf("Resume() = %+v, want account %+v", resumed, account)
		}
	})

	t.Run("stale token is dropped", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		platform := fx.platform
		tokens := local.NewTokenStore()
		platform.Tokens = tokens
		if err := tokens.Save("no-such-token"); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}

		manager := client.NewSessionManager(platform)
		if _, err := manager.Resume(ctx); !errors.Is(err, client.ErrNoSession) {
			t.Fatalf("Resume() = %v, want ErrNoSession", err)
		}
		if _, ok := tokens.Load(); ok {
			t.Error("stale token survived the failed resume")
		}
	})

	t.Run("empty store means no session", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		manager := client.NewSessionManager(fx.platform)
		if _, err := manager.Resume(ctx); !errors.Is(err, client.ErrNoSession) {
			t.Fatalf("Resume() = %v, want ErrNoSession", err)
		}
	})
}

func TestStartDirectFromBothSides(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")
	_, bob := signUp(ctx, t, fx, "bob@example.com")

	aliceIndex := client.NewConversationIndex(fx.platform, alice.UserID)
	if err := aliceIndex.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer aliceIndex.Close()
	bobIndex := client.NewConversationIndex(fx.platform, bob.UserID)
	if err := bobIndex.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer bobIndex.Close()

	// Both users tap "message" at the same moment. Everyone must land in
	// the same conversation.
	const attempts = 8
	ids := make([]string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var conv *chat.Conversation
			var err error
			if i%2 == 0 {
				conv, err = aliceIndex.StartDirect(ctx, bob.UserID)
			} else {
				conv, err = bobIndex.StartDirect(ctx, alice.UserID)
			}
			if err != nil {
				t.Errorf("StartDirect() unexpected error: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()
	for i := 1; i < attempts; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("StartDirect() produced distinct conversations: %q vs %q", ids[i], ids[0])
		}
	}

	// Each side titles the direct conversation with the other member's
	// display name.
	wantTitles := map[*client.ConversationIndex]string{aliceIndex: "bob", bobIndex: "alice"}
	for ix, wantTitle := range wantTitles {
		ix, wantTitle := ix, wantTitle
		eventually(t, func() bool {
			snap := ix.Snapshot()
			return len(snap) == 1 && snap[0].ID == ids[0]
		}, wantTitle+"'s peer never saw the direct conversation")
		snap := ix.Snapshot()
		if snap[0].Title != wantTitle {
			t.Errorf("direct title = %q, want other member's display name %q", snap[0].Title, wantTitle)
		}
		if len(snap[0].MemberIDs) != 2 {
			t.Errorf("members = %v, want both users", snap[0].MemberIDs)
		}
	}
}

func TestDirectTitleFallsBackWhenPeerUnresolvable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")

	// The peer id exists only as a membership row, its profile was never
	// created, so the title falls back to the literal.
	if _, err := fx.adapter.StartDirect(ctx, alice.UserID, "ghost"); err != nil {
		t.Fatalf("StartDirect() unexpected error: %v", err)
	}

	ix := client.NewConversationIndex(fx.platform, alice.UserID)
	if err := ix.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer ix.Close()

	snap := ix.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot = %v, want one conversation", snap)
	}
	if snap[0].Title != client.DirectFallbackTitle {
		t.Errorf("title = %q, want %q", snap[0].Title, client.DirectFallbackTitle)
	}
}

func TestMessageStream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")
	_, bob := signUp(ctx, t, fx, "bob@example.com")

	conv, err := fx.adapter.StartDirect(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("StartDirect() unexpected error: %v", err)
	}
	if _, err := fx.adapter.PostMessage(ctx, alice.UserID, conv.ID, "hello", ""); err != nil {
		t.Fatalf("PostMessage() unexpected error: %v", err)
	}

	stream, err := client.OpenMessageStream(ctx, fx.platform, bob.UserID, conv.ID)
	if err != nil {
		t.Fatalf("OpenMessageStream() unexpected error: %v", err)
	}
	defer stream.Close()

	snap := stream.Snapshot()
	if len(snap) != 1 || snap[0].Message.Content != "hello" {
		t.Fatalf("history snapshot = %v, want the hello message", snap)
	}
	if snap[0].Sender == nil || snap[0].Sender.DisplayName != "alice" {
		t.Errorf("sender = %v, want alice's profile attached", snap[0].Sender)
	}

	for _, content := range []string{"how are you", "still there?"} {
		if _, err := fx.adapter.PostMessage(ctx, alice.UserID, conv.ID, content, ""); err != nil {
			t.Fatalf("PostMessage(%q) unexpected error: %v", content, err)
		}
	}
	eventually(t, func() bool { return len(stream.Snapshot()) == 3 }, "live inserts never reached the stream")

	snap = stream.Snapshot()
	want := []string{"hello", "how are you", "still there?"}
	for i, w := range want {
		if snap[i].Message.Content != w {
			t.Errorf("snapshot[%d] = %q, want %q", i, snap[i].Message.Content, w)
		}
	}
	for i := 1; i < len(snap); i++ {
		a, b := snap[i-1].Message, snap[i].Message
		if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.Seq < a.Seq) {
			t.Errorf("snapshot out of order at %d: %v before %v", i, a, b)
		}
	}
}

func TestStreamSwitchStopsOldConversation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")
	_, bob := signUp(ctx, t, fx, "bob@example.com")

	direct, err := fx.adapter.StartDirect(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("StartDirect() unexpected error: %v", err)
	}
	group, err := fx.adapter.CreateGroup(ctx, alice.UserID, "Weekend Plans", []string{bob.UserID})
	if err != nil {
		t.Fatalf("CreateGroup() unexpected error: %v", err)
	}

	first, err := client.OpenMessageStream(ctx, fx.platform, alice.UserID, direct.ID)
	if err != nil {
		t.Fatalf("OpenMessageStream(direct) unexpected error: %v", err)
	}
	if _, err := fx.adapter.PostMessage(ctx, bob.UserID, direct.ID, "in the old room", ""); err != nil {
		t.Fatalf("PostMessage() unexpected error: %v", err)
	}
	eventually(t, func() bool { return len(first.Snapshot()) == 1 }, "first stream never caught up")

	// Switching conversations: close the old stream, then open the new
	// one. Traffic in the old conversation must not move either view.
	first.Close()
	second, err := client.OpenMessageStream(ctx, fx.platform, alice.UserID, group.ID)
	if err != nil {
		t.Fatalf("OpenMessageStream(group) unexpected error: %v", err)
	}
	defer second.Close()

	if _, err := fx.adapter.PostMessage(ctx, bob.UserID, direct.ID, "after the switch", ""); err != nil {
		t.Fatalf("PostMessage() unexpected error: %v", err)
	}
	if _, err := fx.adapter.PostMessage(ctx, bob.UserID, group.ID, "in the group", ""); err != nil {
		t.Fatalf("PostMessage() unexpected error: %v", err)
	}
	eventually(t, func() bool { return len(second.Snapshot()) == 1 }, "second stream never caught up")

	if got := second.Snapshot(); got[0].Message.Content != "in the group" {
		t.Errorf("second stream holds %q, want only the group message", got[0].Message.Content)
	}
	if got := first.Snapshot(); len(got) != 1 || got[0].Message.Content != "in the old room" {
		t.Errorf("closed stream changed after Close: %v", got)
	}
}

func TestComposer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")
	_, bob := signUp(ctx, t, fx, "bob@example.com")
	conv, err := fx.adapter.StartDirect(ctx, alice.UserID, bob.UserID)
	if err != nil {
		t.Fatalf("StartDirect() unexpected error: %v", err)
	}
	composer := client.NewComposer(fx.platform, alice.UserID, conv.ID)

	t.Run("rejects blank text before it leaves the client", func(t *testing.T) {
		if _, err := composer.SendText(ctx, "   \n\t"); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Fatalf("SendText(blank) = %v, want ErrEmptyMessage", err)
		}
		msgs, err := fx.adapter.RecentMessages(ctx, alice.UserID, conv.ID, client.MessageWindow)
		if err != nil {
			t.Fatalf("RecentMessages() unexpected error: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("blank send reached the store: %v", msgs)
		}
	})

	t.Run("sends text", func(t *testing.T) {
		msg, err := composer.SendText(ctx, "see you at eight")
		if err != nil {
			t.Fatalf("SendText() unexpected error: %v", err)
		}
		if msg.SenderID != alice.UserID || msg.ConversationID != conv.ID {
			t.Errorf("message = %+v, want alice's message in the conversation", msg)
		}
		if composer.Sending() {
			t.Error("Sending() still true after the send returned")
		}
	})

	t.Run("rejects non-images before any upload", func(t *testing.T) {
		before := fx.storage.Len()
		_, err := composer.SendImage(ctx, "notes.txt", "text/plain", strings.NewReader("not an image"), "")
		if !errors.Is(err, client.ErrNotAnImage) {
			t.Fatalf("SendImage(text/plain) = %v, want ErrNotAnImage", err)
		}
		if fx.storage.Len() != before {
			t.Error("rejected file still reached storage")
		}
	})

	t.Run("uploads then posts the image message", func(t *testing.T) {
		payload := "png-bytes"
		msg, err := composer.SendImage(ctx, "sunset.png", "image/png", strings.NewReader(payload), "look at this")
		if err != nil {
			t.Fatalf("SendImage() unexpected error: %v", err)
		}
		if msg.Content != "look at this" {
			t.Errorf("caption = %q, want %q", msg.Content, "look at this")
		}
		if !strings.HasPrefix(msg.ImageURL, "mem://chat-images/"+alice.UserID+"/") {
			t.Errorf("image url = %q, want it keyed under the sender's id", msg.ImageURL)
		}
		if !strings.HasSuffix(msg.ImageURL, ".png") {
			t.Errorf("image url = %q, want the original extension kept", msg.ImageURL)
		}
		key := strings.TrimPrefix(msg.ImageURL, "mem://chat-images/")
		data, contentType, ok := fx.storage.Object(key)
		if !ok {
			t.Fatalf("object %q missing from storage", key)
		}
		if string(data) != payload || contentType != "image/png" {
			t.Errorf("stored (%q, %q), want (%q, %q)", data, contentType, payload, "image/png")
		}
	})
}

func TestProfileDirectoryFollowsPresence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	_, alice := signUp(ctx, t, fx, "alice@example.com")

	directory := client.NewProfileDirectory(fx.platform)
	if err := directory.Open(ctx); err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer directory.Close()

	snap := directory.Snapshot()
	if len(snap) != 1 || snap[0].ID != alice.UserID {
		t.Fatalf("initial snapshot = %v, want only alice", snap)
	}

	bobSession, bob := signUp(ctx, t, fx, "bob@example.com")
	eventually(t, func() bool { return len(directory.Snapshot()) == 2 }, "new user never appeared in the directory")
	snap = directory.Snapshot()
	if snap[0].DisplayName != "alice" || snap[1].DisplayName != "bob" {
		t.Errorf("snapshot = %v, want display-name order", snap)
	}

	if err := bobSession.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() unexpected error: %v", err)
	}
	eventually(t, func() bool {
		snap := directory.Snapshot()
		return len(snap) == 1 && snap[0].ID != bob.UserID
	}, "signed-out user never left the directory")
}
