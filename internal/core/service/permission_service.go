package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

type permissionService struct {
	store ports.Store
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// NewPermissionService returns a PermissionService implementation.
func NewPermissionService(store ports.Store, log zerolog.Logger) ports.PermissionService {
	return &permissionService{store: store, log: log, now: time.Now, newID: uuid.NewString}
}

// CreatePlan mints a plan id and records userID as its creator. The creator
// record exists before any gate can be asked about the plan.
func (s *permissionService) CreatePlan(ctx context.Context, userID string) (*domain.PermissionRecord, error) {
	now := s.now().UTC()
	rec := &domain.PermissionRecord{
		PlanID:    s.newID(),
		UserID:    userID,
		Write:     true,
		Creator:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ports.Store) error {
		return tx.Permissions().Create(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	s.log.Info().Str("plan_id", rec.PlanID).Str("user_id", userID).Msg("plan created")
	return rec, nil
}

// Plans lists every membership of userID.
func (s *permissionService) Plans(ctx context.Context, userID string) ([]domain.PermissionRecord, error) {
	plans, err := s.store.Permissions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	if plans == nil {
		plans = []domain.PermissionRecord{}
	}
	return plans, nil
}

func (s *permissionService) Members(ctx context.Context, planID string) ([]domain.PermissionRecord, error) {
	members, err := s.store.Permissions().ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []domain.PermissionRecord{}
	}
	return members, nil
}
