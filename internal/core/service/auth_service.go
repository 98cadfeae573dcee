package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

// AuthService implements login and logout.
type AuthService struct {
	users    ports.UserRepository
	sessions ports.SessionStore
	codec    *token.Codec
	hasher   ports.PasswordHasher
	log      zerolog.Logger
	now      func() time.Time

	// dummyHash is compared against when the email is unknown so both
	// failure paths of Login spend the same hashing work.
	dummyHash string
}

func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionStore,
	codec *token.Codec,
	hasher ports.PasswordHasher,
	log zerolog.Logger,
) *AuthService {
	dummy, err := hasher.Hash("planner-api:unknown-user")
	if err != nil {
		log.Warn().Err(err).Msg("failed to prepare dummy password hash")
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		log:      log,
		now:      time.Now,

		dummyHash: dummy,
	}
}

// Login checks credentials, signs an access/refresh pair and persists the
// refresh token as a new session. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if s.hasher.Compare(user.PasswordHash, password) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.EmailValidated {
		return nil, domain.ErrEmailNotValidated
	}

	access, accessExp, err := s.codec.Sign(token.Access, user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refresh, refreshExp, err := s.codec.Sign(token.Refresh, user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if _, err := s.sessions.Create(ctx, user.ID, refresh); err != nil {
		return nil, fmt.Errorf("login: create session: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")

	return &ports.LoginResult{
		User:    user,
		Access:  ports.IssuedToken{Value: access, ExpiresAt: accessExp},
		Refresh: ports.IssuedToken{Value: refresh, ExpiresAt: refreshExp},
	}, nil
}

// Logout removes the session of refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
