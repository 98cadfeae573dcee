package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roadbook/planner-api/internal/core/ports"
)

const uniqueViolation = "23505"

// Store implements ports.Store on Postgres.
type Store struct {
	db *sql.DB // nil when the store is bound to a transaction
	q  DBTX
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() ports.UserRepository { return &UserRepository{db: s.q} }
func (s *Store) Permissions() ports.PermissionRepository { return &PermissionRepository{db: s.q} }
func (s *Store) Invitations() ports.InvitationRepository { return &InvitationRepository{db: s.q} }
func (s *Store) PasswordResets() ports.PasswordResetRepository {
	return &PasswordResetRepository{db: s.q}
}

// WithTx runs fn in a transaction. A store already bound to a transaction
// runs fn inside it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &Store{q: tx})
	})
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
