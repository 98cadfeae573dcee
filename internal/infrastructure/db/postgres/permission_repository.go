package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roadbook/planner-api/internal/core/domain"
)

type PermissionRepository struct {
	db DBTX
}

func NewPermissionRepository(db DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `plan_id, user_id, write, creator, created_at, updated_at`

func (r *PermissionRepository) Get(ctx context.Context, userID, planID string) (*domain.PermissionRecord, error) {
	query := `SELECT ` + permissionColumns + ` FROM plan_permissions WHERE user_id = $1 AND plan_id = $2`

	var p domain.PermissionRecord
	err := r.db.QueryRowContext(ctx, query, userID, planID).
		Scan(&p.PlanID, &p.UserID, &p.Write, &p.Creator, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotAMember
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	return &p, nil
}

func (r *PermissionRepository) Create(ctx context.Context, rec *domain.PermissionRecord) error {
	query := `
		INSERT INTO plan_permissions (plan_id, user_id, write, creator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.PlanID, rec.UserID, rec.Write, rec.Creator, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

func (r *PermissionRepository) ListByPlan(ctx context.Context, planID string) ([]domain.PermissionRecord, error) {
	return r.list(ctx, `SELECT `+permissionColumns+` FROM plan_permissions WHERE plan_id = $1 ORDER BY created_at`, planID)
}

func (r *PermissionRepository) ListByUser(ctx context.Context, userID string) ([]domain.PermissionRecord, error) {
	return r.list(ctx, `SELECT `+permissionColumns+` FROM plan_permissions WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *PermissionRepository) list(ctx context.Context, query string, arg string) ([]domain.PermissionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	out := []domain.PermissionRecord{}
	for rows.Next() {
		var p domain.PermissionRecord
		if err := rows.Scan(&p.PlanID, &p.UserID, &p.Write, &p.Creator, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return out, nil
}
