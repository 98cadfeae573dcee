package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/api"
	"github.com/roadbook/planner-api/internal/api/handler"
	"github.com/roadbook/planner-api/internal/api/middleware"
	"github.com/roadbook/planner-api/internal/core/ports"
	"github.com/roadbook/planner-api/internal/core/service"
	"github.com/roadbook/planner-api/internal/core/token"
	"github.com/roadbook/planner-api/internal/infrastructure/config"
	mongostore "github.com/roadbook/planner-api/internal/infrastructure/db/mongo"
	"github.com/roadbook/planner-api/internal/infrastructure/db/postgres"
	redisstore "github.com/roadbook/planner-api/internal/infrastructure/db/redis"
	"github.com/roadbook/planner-api/internal/infrastructure/mail"
	"github.com/roadbook/planner-api/internal/infrastructure/queue"
	"github.com/roadbook/planner-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "planner-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "planner-api",
	})

	codec, err := newCodec(cfg.Tokens)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	sessions := redisstore.NewSessionStore(rdb, config.Seconds(cfg.Tokens.RefreshLifetime))

	mailer, err := mail.New(mail.Config{
		Provider:       cfg.Mail.Provider,
		From:           cfg.Mail.From,
		SendGridAPIKey: cfg.Mail.SendGridAPIKey,
		MailgunDomain:  cfg.Mail.MailgunDomain,
		MailgunAPIKey:  cfg.Mail.MailgunAPIKey,
	}, logger.Component(log, "mail"))
	if err != nil {
		return err
	}

	// The dispatcher outlives the HTTP server so in-flight requests can
	// still enqueue while shutting down.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatcher := queue.NewMailDispatcher(mailer, queue.Options{
		Workers:     cfg.Mail.Workers,
		MaxAttempts: cfg.Mail.MaxAttempts,
	}, logger.Component(log, "mail_dispatcher"))
	dispatcher.Start(dispatchCtx)
	defer func() {
		stopDispatch()
		dispatcher.Wait()
	}()

	links := service.Links{BaseURL: cfg.AppBaseURL}
	hasher := service.NewBcryptHasher()
	svcLog := logger.Component(log, "service")

	e := api.NewRouter(api.Deps{
		Log:         logger.Component(log, "http"),
		Codec:       codec,
		Sessions:    sessions,
		Permissions: store.Permissions(),
		Cookies: middleware.Cookies{
			AccessName:  cfg.Cookies.AccessName,
			RefreshName: cfg.Cookies.RefreshName,
			Secure:      cfg.Cookies.Secure,
		},
		Auth:        service.NewAuthService(store.Users(), sessions, codec, hasher, svcLog),
		Users:       service.NewUserService(store, sessions, codec, hasher, dispatcher, links, svcLog),
		Invitations: service.NewInvitationService(store, codec, dispatcher, links, svcLog),
		Members:     service.NewPermissionService(store, svcLog),
		InviteLink:  links.Invitation,
		Readiness: map[string]handler.PingFunc{
			"store": store.Ping,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newCodec(t config.TokenConfig) (*token.Codec, error) {
	return token.NewCodec(map[token.Kind]token.Key{
		token.Access:               {Secret: t.AccessSecret, Lifetime: config.Seconds(t.AccessLifetime)},
		token.Refresh:              {Secret: t.RefreshSecret, Lifetime: config.Seconds(t.RefreshLifetime)},
		token.PasswordReset:        {Secret: t.PasswordResetSecret, Lifetime: config.Seconds(t.PasswordResetLifetime)},
		token.EmailValidation:      {Secret: t.EmailValidationSecret, Lifetime: config.Seconds(t.EmailValidationLifetime)},
		token.InvitationValidation: {Secret: t.InvitationSecret, Lifetime: config.Seconds(t.InvitationLifetime)},
	})
}

// pingStore is a ports.Store that can report its health.
type pingStore interface {
	ports.Store
	Ping(ctx context.Context) error
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (pingStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxOpenConns: 20, ConnMaxLifetime: time.Hour})
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Msg("postgres ready")
		return postgres.NewStore(db), func() { _ = db.Close() }, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "planner-api",
		})
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.NewStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info().Msg("mongo ready")
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	}
}
