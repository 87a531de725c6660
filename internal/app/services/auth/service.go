package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domainauth "bchat/internal/domain/auth"
	domainidentity "bchat/internal/domain/identity"
	domainprofile "bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenGenerator interface {
	NewToken() (string, error)
}

type Service struct {
	Identities domainidentity.Repository
	Profiles   domainprofile.Repository
	Sessions   domainauth.SessionStore
	Passwords  PasswordHasher
	Tokens     TokenGenerator
	Feed       feed.Publisher
	SessionTTL time.Duration
	Logger     *slog.Logger
}

type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	Identity *domainidentity.Identity
	Profile  *domainprofile.Profile
	Token    string
}

type ResolveResult struct {
	Identity *domainidentity.Identity
	Profile  *domainprofile.Profile
	Session  *domainauth.Session
}

// Register creates the authentication identity together with its
// profile. The profile row is announced on the change feed so open
// directories pick the new user up.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainidentity.NormalizeEmail(params.Email)
	if email == "" {
		return nil, domainidentity.ErrEmailRequired
	}
	if err := s.validatePassword(params.Password); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		// Fall back to the local part of the email address.
		displayName = email
		if at := strings.IndexByte(email, '@'); at > 0 {
			displayName = email[:at]
		}
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	ident, err := domainidentity.New(domainidentity.CreateParams{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Identities.Save(ctx, ident); err != nil {
		return nil, err
	}
	prof, err := domainprofile.New(domainprofile.CreateParams{
		ID:          ident.ID,
		DisplayName: displayName,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Profiles.Save(ctx, prof); err != nil {
		return nil, err
	}
	if s.Feed != nil {
		s.Feed.Publish(feed.Event{Table: feed.TableProfiles, Type: feed.Insert, Row: prof})
	}
	token, err := s.issueSession(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", "user_id", ident.ID, "email", ident.Email)
	}
	return &AuthResult{Identity: ident, Profile: prof, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainidentity.NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.Identities.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainidentity.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.Passwords.Compare(ident.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	prof, err := s.Profiles.ByID(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	token, err := s.issueSession(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user authenticated", "user_id", ident.ID)
	}
	return &AuthResult{Identity: ident, Profile: prof, Token: token}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.ensureDependencies(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.Sessions.Delete(ctx, domainauth.Token(token)); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("session terminated")
	}
	return nil
}

// LogoutAll revokes every session the user holds, across all devices.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.ensureDependencies(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domainauth.ErrUserRequired
	}
	if err := s.Sessions.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("all sessions terminated", "user_id", userID)
	}
	return nil
}

func (s *Service) ResolveToken(ctx context.Context, token string) (*ResolveResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	ident, err := s.Identities.ByID(ctx, session.UserID)
	if err != nil {
		_ = s.Sessions.Delete(ctx, session.Token)
		if errors.Is(err, domainidentity.ErrNotFound) {
			return nil, domainauth.ErrSessionNotFound
		}
		return nil, err
	}
	prof, err := s.Profiles.ByID(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{Identity: ident, Profile: prof, Session: session}, nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (string, error) {
	token, err := s.Tokens.NewToken()
	if err != nil {
		return "", err
	}
	session, err := domainauth.NewSession(domainauth.CreateSessionParams{
		Token:  domainauth.Token(token),
		UserID: userID,
		TTL:    s.sessionTTL(),
		Now:    time.Now(),
	})
	if err != nil {
		return "", err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return 24 * time.Hour
}

func (s *Service) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Identities == nil:
		return errors.New("auth: identity repository required")
	case s.Profiles == nil:
		return errors.New("auth: profile repository required")
	case s.Sessions == nil:
		return errors.New("auth: session store required")
	case s.Passwords == nil:
		return errors.New("auth: password hasher required")
	case s.Tokens == nil:
		return errors.New("auth: token generator required")
	default:
		return nil
	}
}
