package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roadbook/planner-api/internal/core/domain"
)

type PasswordResetRepository struct {
	db DBTX
}

func NewPasswordResetRepository(db DBTX) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, req *domain.PasswordResetRequest) error {
	query := `
		INSERT INTO password_resets (token, user_id, created_at, used)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, req.Token, req.UserID, req.CreatedAt.UTC(), req.Used); err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (r *PasswordResetRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetRequest, error) {
	query := `SELECT token, user_id, created_at, used FROM password_resets WHERE token = $1 FOR UPDATE`

	var req domain.PasswordResetRequest
	err := r.db.QueryRowContext(ctx, query, token).Scan(&req.Token, &req.UserID, &req.CreatedAt, &req.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResetRequestNotFound
		}
		return nil, fmt.Errorf("find password reset: %w", err)
	}
	return &req, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE password_resets SET used = TRUE WHERE token = $1 AND used = FALSE`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	if n == 0 {
		return domain.ErrResetRequestUsed
	}
	return nil
}
