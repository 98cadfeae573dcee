package domain

import "time"

// Session binds a refresh token to the user it was issued for.
// The token is the lookup key; expiry lives inside the token itself.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
