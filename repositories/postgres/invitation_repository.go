package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"go.uber.org/zap"
)

// InvitationRepository implements the repositories.InvitationRepository interface
type InvitationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *DB, logger *zap.Logger) repositories.InvitationRepository {
	return &InvitationRepository{
		db:     db,
		logger: logger,
	}
}

const invitationColumns = `id, org_id, document_id, invited_by, email, token, status, expires_at, accepted_at, created_at`

// Create creates a new invitation
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (` + invitationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		inv.ID,
		inv.OrgID,
		inv.DocumentID,
		inv.InvitedBy,
		inv.Email,
		inv.Token,
		inv.Status,
		inv.ExpiresAt,
		inv.AcceptedAt,
		inv.CreatedAt,
	)
	if err != nil {
		return mapError(err, "create invitation")
	}

	r.logger.Debug("invitation created",
		zap.String("id", inv.ID.String()),
		zap.String("document_id", inv.DocumentID.String()))
	return nil
}

// GetByEmailAndToken retrieves the invitation an invitation link points at
func (r *InvitationRepository) GetByEmailAndToken(ctx context.Context, email, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE email = $1 AND token = $2`

	executor := GetExecutor(ctx, r.db)
	inv, err := scanInvitation(executor.QueryRowContext(ctx, query, models.NormalizeEmail(email), token))
	if err != nil {
		return nil, mapError(err, "get invitation")
	}
	return inv, nil
}

// ListByDocument retrieves a document's invitations, oldest first
func (r *InvitationRepository) ListByDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE org_id = $1 AND document_id = $2
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, orgID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invs := []*models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitation rows: %w", err)
	}

	return invs, nil
}

// MarkAccepted marks a pending invitation accepted
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE invitations
		SET status = $2,
		    accepted_at = $3
		WHERE id = $1 AND status = $4
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, models.InvitationAccepted, at, models.InvitationPending)
	if err != nil {
		return mapError(err, "accept invitation")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("accept invitation %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("invitation accepted", zap.String("id", id.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var acceptedAt sql.NullTime
	err := row.Scan(
		&inv.ID,
		&inv.OrgID,
		&inv.DocumentID,
		&inv.InvitedBy,
		&inv.Email,
		&inv.Token,
		&inv.Status,
		&inv.ExpiresAt,
		&acceptedAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return inv, nil
}
