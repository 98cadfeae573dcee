package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadbook/planner-api/internal/api/metrics"
	"github.com/roadbook/planner-api/internal/api/middleware"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

type InvitationHandler struct {
	invitations ports.InvitationService
}

func NewInvitationHandler(invitations ports.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type acceptResponse struct {
	Permission *domain.PermissionRecord `json:"permission"`
}

// Accept grants the caller the membership carried by the invitation.
// POST /invitation/:token
func (h *InvitationHandler) Accept(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return domain.ErrUnauthenticated
	}

	rec, err := h.invitations.Accept(c.Request().Context(), userID, c.Param("token"))
	metrics.InvitationAcceptancesTotal.WithLabelValues(acceptResult(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acceptResponse{Permission: rec})
}

func acceptResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrInvitationMalformed):
		return "malformed"
	case errors.Is(err, domain.ErrInvitationNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvitationAlreadyAccepted):
		return "already_accepted"
	case errors.Is(err, domain.ErrInvitationExpired):
		return "expired"
	case errors.Is(err, domain.ErrAlreadyMember):
		return "already_member"
	default:
		return "error"
	}
}
