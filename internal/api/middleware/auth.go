package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/api/metrics"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

// errUnauthorized is the only response AuthGate ever produces on failure.
// Store outages and bad tokens look the same to the client.
func errUnauthorized(cause error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized").SetInternal(cause)
}

// AuthGate establishes the caller's identity from the credential cookies.
//
// A present access cookie decides the request on its own: valid proceeds,
// anything else clears it and rejects. Without an access cookie the refresh
// cookie is looked up in the session store and, when it still verifies, a
// new access cookie is issued. The refresh token itself is left in place.
func AuthGate(codec *token.Codec, sessions ports.SessionStore, cookies Cookies, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if access := cookies.read(c, cookies.AccessName); access != "" {
				res := codec.Verify(token.Access, access)
				if !res.Valid() {
					cookies.ClearAccess(c)
					return reject(log, "access_"+res.Failure.String(), nil)
				}
				metrics.AuthGateOutcomesTotal.WithLabelValues("access").Inc()
				c.Set(userIDKey, res.SubjectID)
				return next(c)
			}

			refresh := cookies.ReadRefresh(c)
			if refresh == "" {
				return reject(log, "no_credentials", nil)
			}

			session, err := lookupSession(c.Request().Context(), sessions, refresh)
			if err != nil {
				cookies.ClearRefresh(c)
				if !errors.Is(err, domain.ErrSessionNotFound) {
					log.Warn().Err(err).Msg("session lookup failed")
				}
				return reject(log, "session_not_found", err)
			}

			res := codec.Verify(token.Refresh, session.Token)
			if !res.Valid() {
				cookies.ClearRefresh(c)
				return reject(log, "refresh_"+res.Failure.String(), nil)
			}
			if res.SubjectID != session.UserID {
				cookies.ClearRefresh(c)
				return reject(log, "session_subject_mismatch", nil)
			}

			access, expires, err := codec.Sign(token.Access, res.SubjectID)
			if err != nil {
				log.Error().Err(err).Msg("sign access token")
				return reject(log, "sign_failed", err)
			}
			cookies.SetAccess(c, access, expires)

			metrics.AuthGateOutcomesTotal.WithLabelValues("refreshed").Inc()
			c.Set(userIDKey, res.SubjectID)
			return next(c)
		}
	}
}

// lookupSession turns a panicking store into an ordinary lookup error so the
// gate still answers 401.
func lookupSession(ctx context.Context, sessions ports.SessionStore, raw string) (s *domain.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("session store panic: %v", r)
		}
	}()
	return sessions.Get(ctx, raw)
}

func reject(log zerolog.Logger, reason string, cause error) error {
	metrics.AuthGateOutcomesTotal.WithLabelValues("rejected").Inc()
	log.Debug().Str("reason", reason).Msg("request not authenticated")
	if cause == nil {
		cause = domain.ErrUnauthenticated
	}
	return errUnauthorized(cause)
}
