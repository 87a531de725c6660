package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bchat/internal/app/services/auth"
	domainauth "bchat/internal/domain/auth"
	domainidentity "bchat/internal/domain/identity"
	"bchat/internal/infra/feed"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
)

func newService(hub *feed.Hub) *auth.Service {
	svc := &auth.Service{
		Identities: memory.NewIdentityRepository(),
		Profiles:   memory.NewProfileRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
	if hub != nil {
		svc.Feed = hub
	}
	return svc
}

func TestRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("display name falls back to email local part", func(t *testing.T) {
		t.Parallel()
		svc := newService(nil)
		result, err := svc.Register(ctx, auth.RegisterParams{
			Email:    "Alice@Example.com",
			Password: "correct-horse",
		})
		if err != nil {
			t.Fatalf("Register() unexpected error: %v", err)
		}
		if result.Identity.Email != "alice@example.com" {
			t.Errorf("email = %q, want normalized lowercase", result.Identity.Email)
		}
		if result.Profile.DisplayName != "alice" {
			t.Errorf("display name = %q, want %q", result.Profile.DisplayName, "alice")
		}
		if result.Token == "" {
			t.Error("registration must issue a session token")
		}
	})

	t.Run("announces the profile on the feed", func(t *testing.T) {
		t.Parallel()
		hub := feed.NewHub("test", nil)
		defer hub.Close()
		sub := hub.Subscribe(feed.TableProfiles, []feed.EventType{feed.Insert}, feed.Filter{})
		defer sub.Close()

		svc := newService(hub)
		result, err := svc.Register(ctx, auth.RegisterParams{
			Email:       "bob@example.com",
			Password:    "correct-horse",
			DisplayName: "Bob",
		})
		if err != nil {
			t.Fatalf("Register() unexpected error: %v", err)
		}
		select {
		case ev := <-sub.Events():
			prof, ok := ev.Profile()
			if !ok || prof.ID != result.Profile.ID {
				t.Fatalf("feed carried %+v, want profile %q", ev, result.Profile.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("profile insert never reached the feed")
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		t.Parallel()
		svc := newService(nil)
		params := auth.RegisterParams{Email: "dup@example.com", Password: "correct-horse"}
		if _, err := svc.Register(ctx, params); err != nil {
			t.Fatalf("Register() unexpected error: %v", err)
		}
		if _, err := svc.Register(ctx, params); !errors.Is(err, domainidentity.ErrEmailAlreadyUsed) {
			t.Fatalf("Register() error = %v, want %v", err, domainidentity.ErrEmailAlreadyUsed)
		}
	})

	t.Run("rejects short password", func(t *testing.T) {
		t.Parallel()
		svc := newService(nil)
		_, err := svc.Register(ctx, auth.RegisterParams{Email: "short@example.com", Password: "seven77"})
		if !errors.Is(err, auth.ErrPasswordTooShort) {
			t.Fatalf("Register() error = %v, want %v", err, auth.ErrPasswordTooShort)
		}
	})
}

func TestLoginAndSessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(nil)
	if _, err := svc.Register(ctx, auth.RegisterParams{Email: "alice@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	result, err := svc.Login(ctx, auth.LoginParams{Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	resolved, err := svc.ResolveToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("ResolveToken() unexpected error: %v", err)
	}
	if resolved.Identity.ID != result.Profile.ID {
		t.Errorf("resolved identity %q, want %q", resolved.Identity.ID, result.Profile.ID)
	}

	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout() unexpected error: %v", err)
	}
	if _, err := svc.ResolveToken(ctx, result.Token); !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("ResolveToken() after logout error = %v, want %v", err, domainauth.ErrSessionNotFound)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(nil)
	registered, err := svc.Register(ctx, auth.RegisterParams{Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	second, err := svc.Login(ctx, auth.LoginParams{Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	if err := svc.LogoutAll(ctx, registered.Profile.ID); err != nil {
		t.Fatalf("LogoutAll() unexpected error: %v", err)
	}
	for _, token := range []string{registered.Token, second.Token} {
		if _, err := svc.ResolveToken(ctx, token); !errors.Is(err, domainauth.ErrSessionNotFound) {
			t.Errorf("ResolveToken() after LogoutAll error = %v, want %v", err, domainauth.ErrSessionNotFound)
		}
	}

	if err := svc.LogoutAll(ctx, "  "); !errors.Is(err, domainauth.ErrUserRequired) {
		t.Errorf("LogoutAll(blank) error = %v, want %v", err, domainauth.ErrUserRequired)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(nil)
	if _, err := svc.Register(ctx, auth.RegisterParams{Email: "alice@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "wrong-horse"},
		{name: "unknown email", email: "nobody@example.com", password: "correct-horse"},
		{name: "empty email", email: "", password: "correct-horse"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Login(ctx, auth.LoginParams{Email: tc.email, Password: tc.password})
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want %v", err, auth.ErrInvalidCredentials)
			}
		})
	}
}
