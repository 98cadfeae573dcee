package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
//
// It is the only place where errors become responses.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

// domainStatus maps domain sentinels to a status and a public message.
var domainStatus = []struct {
	err  error
	code int
	msg  string
}{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrInvalidCredentials, http.StatusBadRequest, "invalid email or password"},
	{domain.ErrEmailNotValidated, http.StatusUnauthorized, "email not validated"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{domain.ErrUserExists, http.StatusConflict, "user already exists"},
	{domain.ErrInvalidToken, http.StatusBadRequest, "invalid or expired token"},
	{domain.ErrNotAMember, http.StatusNotFound, "plan not found"},
	{domain.ErrReadOnlyMember, http.StatusForbidden, "write permission required"},
	{domain.ErrAlreadyMember, http.StatusConflict, "already a member of this plan"},
	{domain.ErrInvitationMalformed, http.StatusBadRequest, "invalid invitation token"},
	{domain.ErrInvitationNotFound, http.StatusNotFound, "invitation not found"},
	{domain.ErrInvitationAlreadyAccepted, http.StatusConflict, "invitation already accepted"},
	{domain.ErrInvitationExpired, http.StatusBadRequest, "invitation expired"},
	{domain.ErrResetRequestNotFound, http.StatusBadRequest, "invalid or expired token"},
	{domain.ErrResetRequestUsed, http.StatusBadRequest, "invalid or expired token"},
	{domain.ErrInvalidInput, http.StatusBadRequest, ""},
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("http error")
		}
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	for _, d := range domainStatus {
		if errors.Is(err, d.err) {
			msg := d.msg
			if msg == "" {
				msg = err.Error()
			}
			return d.code, msg
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
