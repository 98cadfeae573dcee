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

type AuthHandler struct {
	auth    ports.AuthService
	cookies middleware.Cookies
}

func NewAuthHandler(auth ports.AuthService, cookies middleware.Cookies) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id"`
}

// Login checks the credentials and sets the access and refresh cookies.
// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	h.cookies.SetAccess(c, res.Access.Value, res.Access.ExpiresAt)
	h.cookies.SetRefresh(c, res.Refresh.Value, res.Refresh.ExpiresAt)
	return c.JSON(http.StatusOK, userResponse{User: res.User})
}

// Status reports the identity bound by AuthGate.
// GET /auth/status
func (h *AuthHandler) Status(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return domain.ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, statusResponse{Authenticated: true, UserID: userID})
}

// Logout drops the session behind the refresh cookie and clears both cookies.
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context(), h.cookies.ReadRefresh(c)); err != nil {
		return err
	}
	h.cookies.ClearAccess(c)
	h.cookies.ClearRefresh(c)
	return c.NoContent(http.StatusNoContent)
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrEmailNotValidated):
		return "email_not_validated"
	default:
		return "error"
	}
}
