package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/api/metrics"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

// PlanIDParam is the route parameter holding the plan id.
const PlanIDParam = "planId"

// PlanRead lets any member of the plan through. Non-members get 404 so that
// they cannot tell a hidden plan from a missing one.
// It must be mounted after AuthGate.
func PlanRead(perms ports.PermissionRepository, log zerolog.Logger) echo.MiddlewareFunc {
	return planGate("read", false, perms, log)
}

// PlanWrite additionally requires the write flag; read-only members get 403.
// It must be mounted after AuthGate.
func PlanWrite(perms ports.PermissionRepository, log zerolog.Logger) echo.MiddlewareFunc {
	return planGate("write", true, perms, log)
}

func planGate(gate string, needWrite bool, perms ports.PermissionRepository, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserID(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			planID := c.Param(PlanIDParam)
			if planID == "" {
				return echo.NewHTTPError(http.StatusNotFound, "plan not found")
			}

			rec, err := perms.Get(c.Request().Context(), userID, planID)
			switch {
			case errors.Is(err, domain.ErrNotAMember):
				metrics.PlanAccessDecisionsTotal.WithLabelValues(gate, "not_member").Inc()
				return echo.NewHTTPError(http.StatusNotFound, "plan not found").SetInternal(err)
			case err != nil:
				metrics.PlanAccessDecisionsTotal.WithLabelValues(gate, "error").Inc()
				log.Error().Err(err).Str("plan_id", planID).Msg("permission lookup failed")
				return err
			}

			if needWrite && !rec.CanWrite() {
				metrics.PlanAccessDecisionsTotal.WithLabelValues(gate, "read_only").Inc()
				return echo.NewHTTPError(http.StatusForbidden, "write permission required").SetInternal(domain.ErrReadOnlyMember)
			}

			metrics.PlanAccessDecisionsTotal.WithLabelValues(gate, "allowed").Inc()
			c.Set(permissionKey, rec)
			return next(c)
		}
	}
}
