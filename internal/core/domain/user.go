package domain

import "time"

// User models an account that can log in and collaborate on plans.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	EmailValidated bool       `json:"email_validated"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// UserWithPermissions is the profile view returned by GET /user.
type UserWithPermissions struct {
	User
	Permissions []PermissionRecord `json:"permissions"`
}
