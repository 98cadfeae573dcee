package domain

import "errors"

// Authentication.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotValidated  = errors.New("email address not validated")
	ErrSessionNotFound    = errors.New("session not found")
)

// Users.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Plan permissions.
var (
	ErrNotAMember     = errors.New("plan not found")
	ErrReadOnlyMember = errors.New("write permission required")
	ErrAlreadyMember  = errors.New("user is already a member of this plan")
)

// Invitations.
var (
	ErrInvitationMalformed       = errors.New("invalid invitation token")
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationAlreadyAccepted = errors.New("invitation already accepted")
	ErrInvitationExpired         = errors.New("invitation expired")
)

// Password reset.
var (
	ErrResetRequestNotFound = errors.New("password reset request not found")
	ErrResetRequestUsed     = errors.New("password reset link already used")
)

// ErrInvalidInput marks a request the service cannot act on.
var ErrInvalidInput = errors.New("invalid input")

// Mail.
var ErrMailQueueClosed = errors.New("mail queue closed")
