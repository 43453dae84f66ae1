// Package organization manages tenants and who belongs to them.
package organization

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"go.uber.org/zap"
)

// Service implements organization operations.
type Service struct {
	repos    *repositories.Repositories
	txMgr    repositories.TransactionManager
	activity services.ActivityRecorder
	cache    *MembershipCache
	logger   *zap.Logger
}

// NewService creates an organization service.
func NewService(repos *repositories.Repositories, txMgr repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{repos: repos, txMgr: txMgr, activity: services.NopRecorder{}, logger: logger}
}

// WithActivity makes the service record created organizations to rec.
func (s *Service) WithActivity(rec services.ActivityRecorder) *Service {
	s.activity = rec
	return s
}

// WithCache makes Membership consult cache before the repository.
func (s *Service) WithCache(cache *MembershipCache) *Service {
	s.cache = cache
	return s
}

// List returns the organizations userID belongs to, with their role.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationMembership, error) {
	orgs, err := s.repos.Organizations.ListForUser(ctx, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}
	return orgs, nil
}

// Create creates an organization with userID as its admin. An empty slug is
// derived from the name.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name, slug string) (*models.OrganizationMembership, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "organization name is required", nil).ForField("name")
	}

	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = models.Slugify(name)
	}
	if !models.ValidSlug(slug) {
		return nil, services.ErrInvalidSlug.ForField("slug")
	}

	org := models.NewOrganization(name, slug)
	admin := models.NewMembership(org.ID, userID, models.RoleAdmin)
	err := services.WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.repos.Organizations.Create(ctx, org); err != nil {
			return services.MapRepositoryError(err, nil, services.ErrDuplicateSlug)
		}
		if err := s.repos.Memberships.Add(ctx, admin); err != nil {
			return services.MapRepositoryError(err, nil, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(admin)
	}

	s.activity.Record(ctx, models.NewAuditLog(org.ID, models.AuditActionOrganizationCreated, models.ResourceOrganization).
		WithUser(userID).
		WithResource(org.ID).
		WithDetails(map[string]interface{}{"name": org.Name, "slug": org.Slug}))

	s.logger.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
		zap.String("user_id", userID.String()))

	return &models.OrganizationMembership{Organization: *org, Role: models.RoleAdmin}, nil
}

// Membership returns userID's membership in orgID, or ErrNotMember.
func (s *Service) Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	if s.cache != nil {
		if m := s.cache.Get(orgID, userID); m != nil {
			return m, nil
		}
	}

	m, err := s.repos.Memberships.Get(ctx, orgID, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrNotMember, nil)
	}
	if s.cache != nil {
		s.cache.Set(m)
	}
	return m, nil
}

// Get returns an organization by id.
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrOrganizationNotFound, nil)
	}
	return org, nil
}
