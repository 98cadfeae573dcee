package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

type invitationService struct {
	store ports.Store
	codec *token.Codec
	mails ports.MailQueue
	links Links
	log   zerolog.Logger
	now   func() time.Time
}

// NewInvitationService returns an InvitationService implementation.
func NewInvitationService(
	store ports.Store,
	codec *token.Codec,
	mails ports.MailQueue,
	links Links,
	log zerolog.Logger,
) ports.InvitationService {
	return &invitationService{
		store: store,
		codec: codec,
		mails: mails,
		links: links,
		log:   log,
		now:   time.Now,
	}
}

// InviteByEmail stores an email invitation and queues the invitation mail.
func (s *invitationService) InviteByEmail(ctx context.Context, in ports.InviteInput) (*domain.Invitation, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("invite by email: %w", domain.ErrInvalidInput)
	}

	inv, err := s.create(ctx, in, domain.InvitationByEmail, &email)
	if err != nil {
		return nil, err
	}

	if err := s.mails.Enqueue(ctx, invitationMail(email, in.Message, s.links.Invitation(inv.Token))); err != nil {
		s.log.Error().Err(err).Str("plan_id", in.PlanID).Msg("failed to queue invitation mail")
	}
	return inv, nil
}

// InviteByLink stores a link invitation. The caller shares the link itself.
func (s *invitationService) InviteByLink(ctx context.Context, in ports.InviteInput) (*domain.Invitation, error) {
	return s.create(ctx, in, domain.InvitationByLink, nil)
}

func (s *invitationService) create(ctx context.Context, in ports.InviteInput, typ domain.InvitationType, email *string) (*domain.Invitation, error) {
	raw, _, err := s.codec.Sign(token.InvitationValidation, in.PlanID)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	now := s.now().UTC()
	inv := &domain.Invitation{
		Token:     raw,
		Email:     email,
		InviterID: in.InviterID,
		Status:    domain.InvitationPending,
		Write:     in.Write,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.InvitationLifetime),
		Type:      typ,
		PlanID:    in.PlanID,
	}
	if in.Message != "" {
		msg := in.Message
		inv.Message = &msg
	}

	if err := s.store.Invitations().Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.log.Info().
		Str("plan_id", in.PlanID).
		Str("inviter_id", in.InviterID).
		Str("type", string(typ)).
		Bool("write", in.Write).
		Msg("invitation created")
	return inv, nil
}

// ListByPlan returns the plan's invitations with expiry computed at read time.
func (s *invitationService) ListByPlan(ctx context.Context, planID string) ([]domain.Invitation, error) {
	invs, err := s.store.Invitations().ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	now := s.now()
	for i := range invs {
		invs[i].Status = invs[i].EffectiveStatus(now)
	}
	return invs, nil
}

// Accept grants the invitation's permission to userID and consumes the
// invitation in one transaction.
func (s *invitationService) Accept(ctx context.Context, userID, raw string) (*domain.PermissionRecord, error) {
	switch s.codec.Verify(token.InvitationValidation, raw).Failure {
	case token.None:
	case token.Expired:
		return nil, domain.ErrInvitationExpired
	default:
		return nil, domain.ErrInvitationMalformed
	}

	var granted *domain.PermissionRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ports.Store) error {
		rec, err := acceptInvitation(ctx, tx, userID, raw, s.now().UTC())
		if err != nil {
			return err
		}
		granted = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("plan_id", granted.PlanID).
		Bool("write", granted.Write).
		Msg("invitation accepted")
	return granted, nil
}

// acceptInvitation performs both acceptance writes through tx. It must run
// inside Store.WithTx so a failure of either write discards the other.
func acceptInvitation(ctx context.Context, tx ports.Store, userID, raw string, now time.Time) (*domain.PermissionRecord, error) {
	inv, err := tx.Invitations().FindByToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvitationAccepted {
		return nil, domain.ErrInvitationAlreadyAccepted
	}
	if inv.IsExpired(now) {
		return nil, domain.ErrInvitationExpired
	}

	rec := &domain.PermissionRecord{
		PlanID:    inv.PlanID,
		UserID:    userID,
		Write:     inv.Write,
		Creator:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Permissions().Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyMember) {
			return nil, err
		}
		return nil, fmt.Errorf("grant permission: %w", err)
	}
	if err := tx.Invitations().MarkAccepted(ctx, raw, now); err != nil {
		if errors.Is(err, domain.ErrInvitationAlreadyAccepted) {
			return nil, err
		}
		return nil, fmt.Errorf("mark invitation accepted: %w", err)
	}
	return rec, nil
}
