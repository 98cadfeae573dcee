package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadbook/planner-api/internal/api/middleware"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,max=64"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	InvitationToken string `json:"invitation_token,omitempty"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type forgottenPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates an account and mails an email-validation link. With an
// invitation token the invitation is accepted as part of the sign-up.
// POST /user
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.Register(c.Request().Context(), ports.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		InvitationToken: req.InvitationToken,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: user})
}

// ValidateEmail POST /user/valid-email
func (h *UserHandler) ValidateEmail(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.users.ValidateEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "email validated"})
}

// ForgottenPassword answers the same way whether or not the email is known.
// POST /user/forgotten-password
func (h *UserHandler) ForgottenPassword(c echo.Context) error {
	var req forgottenPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.users.ForgottenPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "if the address is registered, a reset link has been sent"})
}

// ResetPassword POST /user/reset-password
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.users.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

// Profile returns the caller with their plan memberships.
// GET /user
func (h *UserHandler) Profile(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return domain.ErrUnauthenticated
	}
	profile, err := h.users.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}
