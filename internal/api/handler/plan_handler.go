package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadbook/planner-api/internal/api/middleware"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

// PlanHandler serves the plan routes. Every route runs behind AuthGate;
// the plan-scoped ones also run behind one of the plan gates.
type PlanHandler struct {
	permissions ports.PermissionService
	invitations ports.InvitationService
	inviteLink  func(token string) string
}

// NewPlanHandler wires the handler. inviteLink renders the public URL of an
// invitation token.
func NewPlanHandler(permissions ports.PermissionService, invitations ports.InvitationService, inviteLink func(string) string) *PlanHandler {
	return &PlanHandler{permissions: permissions, invitations: invitations, inviteLink: inviteLink}
}

type inviteByEmailRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message,omitempty" validate:"max=1000"`
	Write   bool   `json:"write"`
}

type inviteByLinkRequest struct {
	Message string `json:"message,omitempty" validate:"max=1000"`
	Write   bool   `json:"write"`
}

type invitationResponse struct {
	Invitation *domain.Invitation `json:"invitation"`
	Link       string             `json:"link"`
}

type membersResponse struct {
	Users []domain.PermissionRecord `json:"users"`
}

type invitationsResponse struct {
	Invitations []domain.Invitation `json:"invitations"`
}

type plansResponse struct {
	Plans []domain.PermissionRecord `json:"plans"`
}

// Create POST /plan
func (h *PlanHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return domain.ErrUnauthenticated
	}
	rec, err := h.permissions.CreatePlan(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// List GET /plan
func (h *PlanHandler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return domain.ErrUnauthenticated
	}
	plans, err := h.permissions.Plans(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plansResponse{Plans: plans})
}

// Members GET /plan/:planId/users
func (h *PlanHandler) Members(c echo.Context) error {
	members, err := h.permissions.Members(c.Request().Context(), c.Param(middleware.PlanIDParam))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, membersResponse{Users: members})
}

// InviteByEmail POST /plan/:planId/invite-by-email
func (h *PlanHandler) InviteByEmail(c echo.Context) error {
	var req inviteByEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := h.inviteInput(c, req.Message, req.Write)
	if err != nil {
		return err
	}
	in.Email = req.Email

	inv, err := h.invitations.InviteByEmail(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invitationResponse{Invitation: inv, Link: h.inviteLink(inv.Token)})
}

// InviteByLink POST /plan/:planId/invite-by-link
func (h *PlanHandler) InviteByLink(c echo.Context) error {
	var req inviteByLinkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := h.inviteInput(c, req.Message, req.Write)
	if err != nil {
		return err
	}

	inv, err := h.invitations.InviteByLink(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invitationResponse{Invitation: inv, Link: h.inviteLink(inv.Token)})
}

// Invitations GET /plan/:planId/invitations
func (h *PlanHandler) Invitations(c echo.Context) error {
	invs, err := h.invitations.ListByPlan(c.Request().Context(), c.Param(middleware.PlanIDParam))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invitationsResponse{Invitations: invs})
}

func (h *PlanHandler) inviteInput(c echo.Context, message string, write bool) (ports.InviteInput, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return ports.InviteInput{}, domain.ErrUnauthenticated
	}
	return ports.InviteInput{
		InviterID: userID,
		PlanID:    c.Param(middleware.PlanIDParam),
		Message:   message,
		Write:     write,
	}, nil
}
