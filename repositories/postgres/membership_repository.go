package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"go.uber.org/zap"
)

// MembershipRepository implements the repositories.MembershipRepository interface
type MembershipRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB, logger *zap.Logger) repositories.MembershipRepository {
	return &MembershipRepository{
		db:     db,
		logger: logger,
	}
}

// Add creates a membership, leaving an existing one untouched
func (r *MembershipRepository) Add(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (org_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, user_id) DO NOTHING
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, m.OrgID, m.UserID, m.Role, m.CreatedAt); err != nil {
		return mapError(err, "add membership")
	}

	r.logger.Debug("membership added",
		zap.String("org_id", m.OrgID.String()),
		zap.String("user_id", m.UserID.String()),
		zap.String("role", string(m.Role)))
	return nil
}

// Get retrieves a user's membership in an organization
func (r *MembershipRepository) Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT org_id, user_id, role, created_at
		FROM memberships
		WHERE org_id = $1 AND user_id = $2
	`

	executor := GetExecutor(ctx, r.db)
	m := &models.Membership{}
	err := executor.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.OrgID,
		&m.UserID,
		&m.Role,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get membership")
	}

	return m, nil
}
