package ports

import (
	"context"
	"time"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// IssuedToken is a signed token together with its embedded expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// LoginResult carries everything the transport needs to open a session.
type LoginResult struct {
	User    *domain.User
	Access  IssuedToken
	Refresh IssuedToken
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// RegisterInput is the payload of a sign-up. InvitationToken is optional.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	InvitationToken string
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	ValidateEmail(ctx context.Context, token string) error
	ForgottenPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Profile(ctx context.Context, userID string) (*domain.UserWithPermissions, error)
}

// InviteInput describes a new invitation. Email is empty for link invitations.
type InviteInput struct {
	InviterID string
	PlanID    string
	Email     string
	Message   string
	Write     bool
}

type InvitationService interface {
	InviteByEmail(ctx context.Context, in InviteInput) (*domain.Invitation, error)
	InviteByLink(ctx context.Context, in InviteInput) (*domain.Invitation, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.Invitation, error)
	Accept(ctx context.Context, userID, token string) (*domain.PermissionRecord, error)
}

type PermissionService interface {
	// CreatePlan opens a new plan owned by userID and returns the creator's record.
	CreatePlan(ctx context.Context, userID string) (*domain.PermissionRecord, error)
	Plans(ctx context.Context, userID string) ([]domain.PermissionRecord, error)
	Members(ctx context.Context, planID string) ([]domain.PermissionRecord, error)
}

// MailQueue accepts mails for asynchronous delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, mail domain.Mail) error
}

// Mailer delivers a single mail synchronously.
type Mailer interface {
	Send(ctx context.Context, mail domain.Mail) error
}

// PasswordHasher is the one-way hash used for stored credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
