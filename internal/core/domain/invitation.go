package domain

import "time"

// InvitationLifetime is how long an invitation stays acceptable after creation.
const InvitationLifetime = 7 * 24 * time.Hour

// InvitationStatus represents the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// InvitationType distinguishes mailed invitations from shareable links.
type InvitationType string

const (
	InvitationByEmail InvitationType = "email"
	InvitationByLink  InvitationType = "link"
)

// Invitation grants a prospective member a fixed permission level on a plan.
// It moves from pending to accepted at most once.
type Invitation struct {
	Token      string           `json:"token"`
	Email      *string          `json:"email,omitempty"`
	InviterID  string           `json:"inviter_id"`
	Message    *string          `json:"message,omitempty"`
	Status     InvitationStatus `json:"status"`
	Write      bool             `json:"write"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	Type       InvitationType   `json:"type"`
	PlanID     string           `json:"plan_id"`
}

// IsExpired reports whether the invitation can no longer be accepted at now.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus computes the status shown to clients. Expiry is derived
// from ExpiresAt and never persisted.
func (i Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.IsExpired(now) {
		return InvitationExpired
	}
	return i.Status
}
