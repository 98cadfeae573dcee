package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// PermissionRepository stores plan memberships, unique on (user_id, plan_id).
type PermissionRepository struct {
	coll *mongo.Collection
}

func NewPermissionRepository(db *mongo.Database) *PermissionRepository {
	return &PermissionRepository{coll: db.Collection(collPermissions)}
}

type mongoPermission struct {
	PlanID    string    `bson:"plan_id"`
	UserID    string    `bson:"user_id"`
	Write     bool      `bson:"write"`
	Creator   bool      `bson:"creator"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m mongoPermission) toDomain() domain.PermissionRecord {
	return domain.PermissionRecord{
		PlanID:    m.PlanID,
		UserID:    m.UserID,
		Write:     m.Write,
		Creator:   m.Creator,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func (r *PermissionRepository) Get(ctx context.Context, userID, planID string) (*domain.PermissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mp mongoPermission
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "plan_id": planID}).Decode(&mp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotAMember
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	rec := mp.toDomain()
	return &rec, nil
}

func (r *PermissionRepository) Create(ctx context.Context, rec *domain.PermissionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, mongoPermission{
		PlanID:    rec.PlanID,
		UserID:    rec.UserID,
		Write:     rec.Write,
		Creator:   rec.Creator,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

func (r *PermissionRepository) ListByPlan(ctx context.Context, planID string) ([]domain.PermissionRecord, error) {
	return r.list(ctx, bson.M{"plan_id": planID})
}

func (r *PermissionRepository) ListByUser(ctx context.Context, userID string) ([]domain.PermissionRecord, error) {
	return r.list(ctx, bson.M{"user_id": userID})
}

func (r *PermissionRepository) list(ctx context.Context, filter bson.M) ([]domain.PermissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	var docs []mongoPermission
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}

	out := make([]domain.PermissionRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
