package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"go.uber.org/zap"
)

// DocumentRepository implements the repositories.DocumentRepository interface
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, org_id, owner_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		doc.ID,
		doc.OrgID,
		doc.OwnerID,
		doc.Title,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create document")
	}

	r.logger.Debug("document created", zap.String("id", doc.ID.String()), zap.String("org_id", doc.OrgID.String()))
	return nil
}

// GetByID retrieves a document within an organization
func (r *DocumentRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, org_id, owner_id, title, status, created_at, updated_at
		FROM documents
		WHERE org_id = $1 AND id = $2
	`

	executor := GetExecutor(ctx, r.db)
	doc := &models.Document{}
	err := executor.QueryRowContext(ctx, query, orgID, id).Scan(
		&doc.ID,
		&doc.OrgID,
		&doc.OwnerID,
		&doc.Title,
		&doc.Status,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get document")
	}

	return doc, nil
}

// ListByOrg retrieves a page of an organization's documents
func (r *DocumentRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.Document, int, error) {
	executor := GetExecutor(ctx, r.db)

	var total int
	if err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE org_id = $1`, orgID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := `
		SELECT id, org_id, owner_id, title, status, created_at, updated_at
		FROM documents
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := executor.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID,
			&doc.OrgID,
			&doc.OwnerID,
			&doc.Title,
			&doc.Status,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, total, nil
}

// UpdateStatus changes a document's status
func (r *DocumentRepository) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status models.DocumentStatus) error {
	query := `
		UPDATE documents
		SET status = $3,
		    updated_at = $4
		WHERE org_id = $1 AND id = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, orgID, id, status, time.Now().UTC())
	if err != nil {
		return mapError(err, "update document status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("update document %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("document status updated", zap.String("id", id.String()), zap.String("status", string(status)))
	return nil
}
