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

// UserService implements sign-up, email validation, password recovery and
// the profile view.
type UserService struct {
	store    ports.Store
	sessions ports.SessionStore
	codec    *token.Codec
	hasher   ports.PasswordHasher
	mails    ports.MailQueue
	links    Links
	log      zerolog.Logger
	now      func() time.Time
}

func NewUserService(
	store ports.Store,
	sessions ports.SessionStore,
	codec *token.Codec,
	hasher ports.PasswordHasher,
	mails ports.MailQueue,
	links Links,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		store:    store,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		mails:    mails,
		links:    links,
		log:      log,
		now:      time.Now,
	}
}

// Register creates an account. When an invitation token is supplied the
// account creation and the invitation acceptance share one transaction.
func (s *UserService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.InvitationToken != "" && s.codec.Verify(token.InvitationValidation, in.InvitationToken).Failure != token.None {
		return nil, domain.ErrInvitationMalformed
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	var created *domain.User
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ports.Store) error {
		u, err := tx.Users().Create(ctx, user)
		if err != nil {
			return err
		}
		if in.InvitationToken != "" {
			if _, err := acceptInvitation(ctx, tx, u.ID, in.InvitationToken, now); err != nil {
				return err
			}
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) || isInvitationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	raw, _, err := s.codec.Sign(token.EmailValidation, created.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", created.ID).Msg("failed to sign email validation token")
		return created, nil
	}
	if err := s.mails.Enqueue(ctx, validationMail(created.Email, created.Username, s.links.ValidateEmail(raw))); err != nil {
		s.log.Error().Err(err).Str("user_id", created.ID).Msg("failed to queue validation mail")
	}

	s.log.Info().Str("user_id", created.ID).Bool("invited", in.InvitationToken != "").Msg("user registered")
	return created, nil
}

// ValidateEmail marks the token's user as having a confirmed address.
func (s *UserService) ValidateEmail(ctx context.Context, raw string) error {
	res := s.codec.Verify(token.EmailValidation, raw)
	if !res.Valid() {
		return domain.ErrInvalidToken
	}
	if err := s.store.Users().MarkEmailValidated(ctx, res.SubjectID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("validate email: %w", err)
	}
	return nil
}

// ForgottenPassword starts a reset for a known address. It reports success
// for unknown addresses too so the endpoint cannot be used to probe accounts.
func (s *UserService) ForgottenPassword(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgotten password: %w", err)
	}

	raw, _, err := s.codec.Sign(token.PasswordReset, user.ID)
	if err != nil {
		return fmt.Errorf("forgotten password: %w", err)
	}
	req := &domain.PasswordResetRequest{
		Token:     raw,
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.PasswordResets().Create(ctx, req); err != nil {
		return fmt.Errorf("forgotten password: %w", err)
	}

	if err := s.mails.Enqueue(ctx, resetMail(user.Email, s.links.ResetPassword(raw))); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to queue reset mail")
	}
	return nil
}

// ResetPassword consumes a reset token, stores the new password hash and
// revokes every session of the user.
func (s *UserService) ResetPassword(ctx context.Context, raw, password string) error {
	if password == "" {
		return domain.ErrInvalidInput
	}
	res := s.codec.Verify(token.PasswordReset, raw)
	if !res.Valid() {
		return domain.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}

	var userID string
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ports.Store) error {
		req, err := tx.PasswordResets().FindByToken(ctx, raw)
		if err != nil {
			return err
		}
		if req.Used {
			return domain.ErrResetRequestUsed
		}
		if req.UserID != res.SubjectID {
			return domain.ErrInvalidToken
		}
		if err := tx.Users().UpdatePassword(ctx, req.UserID, hash); err != nil {
			return err
		}
		if err := tx.PasswordResets().MarkUsed(ctx, raw); err != nil {
			return err
		}
		userID = req.UserID
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrResetRequestNotFound),
			errors.Is(err, domain.ErrResetRequestUsed),
			errors.Is(err, domain.ErrInvalidToken):
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to revoke sessions after password reset")
	}
	s.log.Info().Str("user_id", userID).Msg("password reset")
	return nil
}

// Profile returns the user with every plan membership it holds.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.UserWithPermissions, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.store.Permissions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if perms == nil {
		perms = []domain.PermissionRecord{}
	}
	return &domain.UserWithPermissions{User: *user, Permissions: perms}, nil
}

func isInvitationError(err error) bool {
	return errors.Is(err, domain.ErrInvitationMalformed) ||
		errors.Is(err, domain.ErrInvitationNotFound) ||
		errors.Is(err, domain.ErrInvitationAlreadyAccepted) ||
		errors.Is(err, domain.ErrInvitationExpired) ||
		errors.Is(err, domain.ErrAlreadyMember)
}
