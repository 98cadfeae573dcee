package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roadbook/planner-api/internal/core/domain"
)

type PasswordResetRepository struct {
	coll *mongo.Collection
}

func NewPasswordResetRepository(db *mongo.Database) *PasswordResetRepository {
	return &PasswordResetRepository{coll: db.Collection(collPasswordResets)}
}

type mongoPasswordReset struct {
	Token     string    `bson:"token"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	Used      bool      `bson:"used"`
}

func (r *PasswordResetRepository) Create(ctx context.Context, req *domain.PasswordResetRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, mongoPasswordReset{
		Token:     req.Token,
		UserID:    req.UserID,
		CreatedAt: req.CreatedAt.UTC(),
		Used:      req.Used,
	})
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (r *PasswordResetRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoPasswordReset
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResetRequestNotFound
		}
		return nil, fmt.Errorf("find password reset: %w", err)
	}
	return &domain.PasswordResetRequest{
		Token:     doc.Token,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt.UTC(),
		Used:      doc.Used,
	}, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"token": token, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrResetRequestUsed
	}
	return nil
}
