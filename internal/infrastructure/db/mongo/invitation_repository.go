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

type InvitationRepository struct {
	coll *mongo.Collection
}

func NewInvitationRepository(db *mongo.Database) *InvitationRepository {
	return &InvitationRepository{coll: db.Collection(collInvitations)}
}

type mongoInvitation struct {
	Token      string     `bson:"token"`
	Email      *string    `bson:"email,omitempty"`
	InviterID  string     `bson:"inviter_id"`
	Message    *string    `bson:"message,omitempty"`
	Status     string     `bson:"status"`
	Write      bool       `bson:"write"`
	CreatedAt  time.Time  `bson:"created_at"`
	ExpiresAt  time.Time  `bson:"expires_at"`
	AcceptedAt *time.Time `bson:"accepted_at,omitempty"`
	Type       string     `bson:"type"`
	PlanID     string     `bson:"plan_id"`
}

func (m mongoInvitation) toDomain() domain.Invitation {
	inv := domain.Invitation{
		Token:     m.Token,
		Email:     m.Email,
		InviterID: m.InviterID,
		Message:   m.Message,
		Status:    domain.InvitationStatus(m.Status),
		Write:     m.Write,
		CreatedAt: m.CreatedAt.UTC(),
		ExpiresAt: m.ExpiresAt.UTC(),
		Type:      domain.InvitationType(m.Type),
		PlanID:    m.PlanID,
	}
	if m.AcceptedAt != nil {
		t := m.AcceptedAt.UTC()
		inv.AcceptedAt = &t
	}
	return inv
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, mongoInvitation{
		Token:     inv.Token,
		Email:     inv.Email,
		InviterID: inv.InviterID,
		Message:   inv.Message,
		Status:    string(inv.Status),
		Write:     inv.Write,
		CreatedAt: inv.CreatedAt.UTC(),
		ExpiresAt: inv.ExpiresAt.UTC(),
		Type:      string(inv.Type),
		PlanID:    inv.PlanID,
	})
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mi mongoInvitation
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&mi); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	inv := mi.toDomain()
	return &inv, nil
}

func (r *InvitationRepository) ListByPlan(ctx context.Context, planID string) ([]domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"plan_id": planID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	var docs []mongoInvitation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode invitations: %w", err)
	}

	out := make([]domain.Invitation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// MarkAccepted only matches pending invitations, so two racing acceptances
// cannot both succeed.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, token string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"token": token, "status": string(domain.InvitationPending)},
		bson.M{"$set": bson.M{"status": string(domain.InvitationAccepted), "accepted_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvitationAlreadyAccepted
	}
	return nil
}
