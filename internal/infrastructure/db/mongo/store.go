package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roadbook/planner-api/internal/core/ports"
)

const (
	collUsers          = "users"
	collPermissions    = "plan_permissions"
	collInvitations    = "invitations"
	collPasswordResets = "password_resets"
)

// Store implements ports.Store on MongoDB. Transactions need a replica set.
type Store struct {
	db          *mongo.Database
	users       *UserRepository
	permissions *PermissionRepository
	invitations *InvitationRepository
	resets      *PasswordResetRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:          db,
		users:       NewUserRepository(db),
		permissions: NewPermissionRepository(db),
		invitations: NewInvitationRepository(db),
		resets:      NewPasswordResetRepository(db),
	}
}

func (s *Store) Users() ports.UserRepository { return s.users }
func (s *Store) Permissions() ports.PermissionRepository { return s.permissions }
func (s *Store) Invitations() ports.InvitationRepository { return s.invitations }
func (s *Store) PasswordResets() ports.PasswordResetRepository { return s.resets }

// WithTx runs fn inside a multi-document transaction. The session travels in
// the context handed to fn, so the same repositories join the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("mongo start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// EnsureIndexes creates the unique indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		collPermissions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "plan_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "plan_id", Value: 1}}},
		},
		collInvitations: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "plan_id", Value: 1}}},
		},
		collPasswordResets: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}
