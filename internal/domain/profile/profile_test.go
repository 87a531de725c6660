package profile_test

import (
	"errors"
	"testing"
	"time"

	"bchat/internal/domain/profile"
)

func TestNew(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		params  profile.CreateParams
		wantErr error
	}{
		{name: "valid", params: profile.CreateParams{ID: "u1", DisplayName: "Alice", CreatedAt: now}},
		{name: "missing id", params: profile.CreateParams{DisplayName: "Alice"}, wantErr: profile.ErrIDRequired},
		{name: "missing name", params: profile.CreateParams{ID: "u1", DisplayName: "  "}, wantErr: profile.ErrNameRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := profile.New(tc.params)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if p.Online {
				t.Error("new profile must start offline")
			}
			if !p.LastSeen.Equal(now) {
				t.Errorf("LastSeen = %v, want %v", p.LastSeen, now)
			}
		})
	}
}

func TestMarkPresence(t *testing.T) {
	t.Parallel()

	p, err := profile.New(profile.CreateParams{ID: "u1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.MarkPresence(true, at)
	if !p.Online {
		t.Error("profile must be online after MarkPresence(true)")
	}
	if !p.LastSeen.Equal(at) {
		t.Errorf("LastSeen = %v, want %v", p.LastSeen, at)
	}
	p.MarkPresence(false, at.Add(time.Minute))
	if p.Online {
		t.Error("profile must be offline after MarkPresence(false)")
	}
}

func TestStaleSince(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		online   bool
		lastSeen time.Time
		cutoff   time.Time
		want     bool
	}{
		{name: "online and stale", online: true, lastSeen: base, cutoff: base.Add(time.Minute), want: true},
		{name: "online and fresh", online: true, lastSeen: base, cutoff: base.Add(-time.Minute), want: false},
		{name: "offline never stale", online: false, lastSeen: base, cutoff: base.Add(time.Hour), want: false},
		{name: "seen exactly at cutoff", online: true, lastSeen: base, cutoff: base, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := profile.Profile{ID: "u1", Online: tc.online, LastSeen: tc.lastSeen}
			if got := p.StaleSince(tc.cutoff); got != tc.want {
				t.Errorf("StaleSince() = %v, want %v", got, tc.want)
			}
		})
	}
}
