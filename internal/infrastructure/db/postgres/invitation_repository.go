package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roadbook/planner-api/internal/core/domain"
)

type InvitationRepository struct {
	db DBTX
}

func NewInvitationRepository(db DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `token, email, inviter_id, message, status, write, created_at, expires_at, accepted_at, type, plan_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (domain.Invitation, error) {
	var (
		inv        domain.Invitation
		email      sql.NullString
		message    sql.NullString
		acceptedAt sql.NullTime
		status     string
		typ        string
	)
	err := row.Scan(&inv.Token, &email, &inv.InviterID, &message, &status, &inv.Write,
		&inv.CreatedAt, &inv.ExpiresAt, &acceptedAt, &typ, &inv.PlanID)
	if err != nil {
		return inv, err
	}
	inv.Status = domain.InvitationStatus(status)
	inv.Type = domain.InvitationType(typ)
	if email.Valid {
		inv.Email = &email.String
	}
	if message.Valid {
		inv.Message = &message.String
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time.UTC()
		inv.AcceptedAt = &t
	}
	return inv, nil
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (token, email, inviter_id, message, status, write, created_at, expires_at, type, plan_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.Token, inv.Email, inv.InviterID, inv.Message, string(inv.Status), inv.Write,
		inv.CreatedAt.UTC(), inv.ExpiresAt.UTC(), string(inv.Type), inv.PlanID)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

// FindByToken locks the row so a concurrent acceptance waits for this
// transaction to finish.
func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1 FOR UPDATE`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return &inv, nil
}

func (r *InvitationRepository) ListByPlan(ctx context.Context, planID string) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE plan_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := []domain.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return out, nil
}

func (r *InvitationRepository) MarkAccepted(ctx context.Context, token string, at time.Time) error {
	query := `
		UPDATE invitations
		SET status = 'accepted', accepted_at = $2
		WHERE token = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, token, at.UTC())
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	if n == 0 {
		return domain.ErrInvitationAlreadyAccepted
	}
	return nil
}
