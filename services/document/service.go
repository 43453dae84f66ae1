// Package document implements tenant-scoped documents.
package document

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"go.uber.org/zap"
)

// Paging limits for List.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	maxTitleLen  = 200
)

// Page is one page of documents and the organization's total.
type Page struct {
	Documents []*models.Document
	Total     int
	Limit     int
	Offset    int
}

// Service implements document operations. Every call is scoped to an
// organization id.
type Service struct {
	docs     repositories.DocumentRepository
	activity services.ActivityRecorder
	logger   *zap.Logger
}

// NewService creates a document service.
func NewService(docs repositories.DocumentRepository, logger *zap.Logger) *Service {
	return &Service{docs: docs, activity: services.NopRecorder{}, logger: logger}
}

// WithActivity makes the service record created documents to rec.
func (s *Service) WithActivity(rec services.ActivityRecorder) *Service {
	s.activity = rec
	return s
}

// Create creates a draft document owned by ownerID.
func (s *Service) Create(ctx context.Context, orgID, ownerID uuid.UUID, title string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "title is required", nil).ForField("title")
	}
	if len(title) > maxTitleLen {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "title is too long", nil).ForField("title")
	}

	doc := models.NewDocument(orgID, ownerID, title)
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}

	s.activity.Record(ctx, models.NewAuditLog(orgID, models.AuditActionDocumentCreated, models.ResourceDocument).
		WithUser(ownerID).
		WithResource(doc.ID).
		WithDetails(map[string]interface{}{"title": doc.Title}))

	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("org_id", orgID.String()))
	return doc, nil
}

// List returns a page of the organization's documents, newest first. The
// limit is clamped to [1, MaxLimit] with DefaultLimit for zero.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit, offset int) (*Page, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := s.docs.ListByOrg(ctx, orgID, limit, offset)
	if err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}
	return &Page{Documents: docs, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns a document of the organization. Documents of other
// organizations are reported as not found.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrDocumentNotFound, nil)
	}
	return doc, nil
}
