package ports

import (
	"context"
	"time"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailValidated(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// PermissionRepository is the plan membership store, keyed by (userID, planID).
type PermissionRepository interface {
	// Get returns domain.ErrNotAMember when no record exists for the pair.
	Get(ctx context.Context, userID, planID string) (*domain.PermissionRecord, error)
	// Create returns domain.ErrAlreadyMember when the pair already has a record.
	Create(ctx context.Context, record *domain.PermissionRecord) error
	ListByPlan(ctx context.Context, planID string) ([]domain.PermissionRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PermissionRecord, error)
}

// InvitationRepository persists plan invitations, keyed by token.
type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	FindByToken(ctx context.Context, token string) (*domain.Invitation, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.Invitation, error)
	// MarkAccepted flips a pending invitation to accepted. It returns
	// domain.ErrInvitationAlreadyAccepted when the invitation is no longer pending.
	MarkAccepted(ctx context.Context, token string, at time.Time) error
}

// PasswordResetRepository persists one-time password reset requests.
type PasswordResetRepository interface {
	Create(ctx context.Context, req *domain.PasswordResetRequest) error
	FindByToken(ctx context.Context, token string) (*domain.PasswordResetRequest, error)
	// MarkUsed returns domain.ErrResetRequestUsed when the request was already consumed.
	MarkUsed(ctx context.Context, token string) error
}

// Store groups the repositories of one persistence backend.
type Store interface {
	Users() UserRepository
	Permissions() PermissionRepository
	Invitations() InvitationRepository
	PasswordResets() PasswordResetRepository

	// WithTx runs fn in a single transaction. The Store passed to fn is bound
	// to that transaction; everything fn writes through it commits or rolls
	// back together.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// SessionStore maps refresh tokens to sessions.
type SessionStore interface {
	Create(ctx context.Context, userID, token string) (*domain.Session, error)
	// Get returns domain.ErrSessionNotFound when the token is unknown.
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}
