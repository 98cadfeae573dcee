package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/roadbook/planner-api/internal/core/domain"
)

const (
	userIDKey     = "user_id"
	permissionKey = "plan_permission"
)

// UserID returns the subject bound by AuthGate.
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(userIDKey).(string)
	return id, ok && id != ""
}

// Permission returns the membership bound by PlanRead or PlanWrite.
func Permission(c echo.Context) (*domain.PermissionRecord, bool) {
	p, ok := c.Get(permissionKey).(*domain.PermissionRecord)
	return p, ok && p != nil
}
