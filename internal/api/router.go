package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/api/handler"
	"github.com/roadbook/planner-api/internal/api/middleware"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/token"
)

// Deps is everything the HTTP layer needs. It is built once in main.
type Deps struct {
	Log         zerolog.Logger
	Codec       *token.Codec
	Sessions    ports.SessionStore
	Permissions ports.PermissionRepository
	Cookies     middleware.Cookies

	Auth        ports.AuthService
	Users       ports.UserService
	Invitations ports.InvitationService
	Members     ports.PermissionService

	// InviteLink renders the public URL of an invitation token.
	InviteLink func(token string) string
	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]handler.PingFunc

	// Registerer and Gatherer back the HTTP metrics and /metrics. They
	// default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "planner",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	authGate := middleware.AuthGate(d.Codec, d.Sessions, d.Cookies, d.Log)
	planRead := middleware.PlanRead(d.Permissions, d.Log)
	planWrite := middleware.PlanWrite(d.Permissions, d.Log)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Cookies)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/status", authHandler.Status, authGate)

	// --- User routes ---
	userHandler := handler.NewUserHandler(d.Users)
	e.POST("/user", userHandler.Register)
	e.POST("/user/valid-email", userHandler.ValidateEmail)
	e.POST("/user/forgotten-password", userHandler.ForgottenPassword)
	e.POST("/user/reset-password", userHandler.ResetPassword)
	e.GET("/user", userHandler.Profile, authGate)

	// --- Plan routes (AuthGate first, then the plan gate) ---
	planHandler := handler.NewPlanHandler(d.Members, d.Invitations, d.InviteLink)
	e.POST("/plan", planHandler.Create, authGate)
	e.GET("/plan", planHandler.List, authGate)
	plans := e.Group("/plan/:"+middleware.PlanIDParam, authGate)
	plans.GET("/users", planHandler.Members, planRead)
	plans.GET("/invitations", planHandler.Invitations, planWrite)
	plans.POST("/invite-by-email", planHandler.InviteByEmail, planWrite)
	plans.POST("/invite-by-link", planHandler.InviteByLink, planWrite)

	// --- Invitations ---
	invitationHandler := handler.NewInvitationHandler(d.Invitations)
	e.POST("/invitation/:token", invitationHandler.Accept, authGate)

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Readiness).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= 500:
				ev = log.Error().Err(v.Error)
			case v.Error != nil:
				ev = log.Info().Str("error", v.Error.Error())
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
