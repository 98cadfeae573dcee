package domain

import "time"

// PasswordResetRequest is a one-time gate for resetting a password.
type PasswordResetRequest struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Used      bool      `json:"used"`
}
