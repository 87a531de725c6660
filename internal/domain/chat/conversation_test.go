package chat_test

import (
	"errors"
	"testing"
	"time"

	"bchat/internal/domain/chat"
)

func TestDirectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want string
	}{
		{name: "already ordered", a: "alice", b: "bob", want: "alice:bob"},
		{name: "reversed", a: "bob", b: "alice", want: "alice:bob"},
		{name: "whitespace trimmed", a: " bob ", b: "alice", want: "alice:bob"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := chat.DirectKey(tc.a, tc.b); got != tc.want {
				t.Errorf("DirectKey(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestNewDirect(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		params  chat.DirectParams
		wantErr error
	}{
		{
			name:   "valid",
			params: chat.DirectParams{ID: "c1", CreatedBy: "alice", OtherID: "bob", Now: now},
		},
		{
			name:    "missing id",
			params:  chat.DirectParams{CreatedBy: "alice", OtherID: "bob", Now: now},
			wantErr: chat.ErrConversationIDRequired,
		},
		{
			name:    "missing creator",
			params:  chat.DirectParams{ID: "c1", OtherID: "bob", Now: now},
			wantErr: chat.ErrCreatorRequired,
		},
		{
			name:    "self conversation",
			params:  chat.DirectParams{ID: "c1", CreatedBy: "alice", OtherID: "alice", Now: now},
			wantErr: chat.ErrSelfConversation,
		},
		{
			name:    "missing other",
			params:  chat.DirectParams{ID: "c1", CreatedBy: "alice", Now: now},
			wantErr: chat.ErrSelfConversation,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			conv, err := chat.NewDirect(tc.params)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("NewDirect() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDirect() unexpected error: %v", err)
			}
			if conv.IsGroup {
				t.Error("direct conversation must not be a group")
			}
			if conv.DirectKey != chat.DirectKey("alice", "bob") {
				t.Errorf("DirectKey = %q, want canonical pair key", conv.DirectKey)
			}
		})
	}
}

func TestNewGroup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("members deduped and creator first", func(t *testing.T) {
		t.Parallel()
		conv, members, err := chat.NewGroup(chat.GroupParams{
			ID:        "g1",
			Name:      "Team Awesome",
			CreatedBy: "alice",
			MemberIDs: []string{"bob", "alice", "carol", "bob", " "},
			Now:       now,
		})
		if err != nil {
			t.Fatalf("NewGroup() unexpected error: %v", err)
		}
		if !conv.IsGroup {
			t.Error("group conversation must be marked as group")
		}
		if conv.DirectKey != "" {
			t.Errorf("group must not carry a direct key, got %q", conv.DirectKey)
		}
		want := []string{"alice", "bob", "carol"}
		if len(members) != len(want) {
			t.Fatalf("members = %v, want %v", members, want)
		}
		for i := range want {
			if members[i] != want[i] {
				t.Errorf("members[%d] = %q, want %q", i, members[i], want[i])
			}
		}
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name    string
			params  chat.GroupParams
			wantErr error
		}{
			{
				name:    "missing name",
				params:  chat.GroupParams{ID: "g1", CreatedBy: "alice", MemberIDs: []string{"bob"}, Now: now},
				wantErr: chat.ErrGroupNameRequired,
			},
			{
				name:    "blank name",
				params:  chat.GroupParams{ID: "g1", Name: "   ", CreatedBy: "alice", MemberIDs: []string{"bob"}, Now: now},
				wantErr: chat.ErrGroupNameRequired,
			},
			{
				name:    "no other members",
				params:  chat.GroupParams{ID: "g1", Name: "Solo", CreatedBy: "alice", MemberIDs: []string{"alice"}, Now: now},
				wantErr: chat.ErrMembersRequired,
			},
			{
				name:    "missing creator",
				params:  chat.GroupParams{ID: "g1", Name: "Team", MemberIDs: []string{"bob"}, Now: now},
				wantErr: chat.ErrCreatorRequired,
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				if _, _, err := chat.NewGroup(tc.params); !errors.Is(err, tc.wantErr) {
					t.Errorf("NewGroup() error = %v, want %v", err, tc.wantErr)
				}
			})
		}
	})
}
