package domain

import "time"

// PermissionRecord is a user's membership on a plan.
// At most one record exists per (UserID, PlanID).
type PermissionRecord struct {
	PlanID    string    `json:"plan_id"`
	UserID    string    `json:"user_id"`
	Write     bool      `json:"write"`
	Creator   bool      `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanWrite reports whether the member may modify the plan.
func (p PermissionRecord) CanWrite() bool {
	return p.Write
}
