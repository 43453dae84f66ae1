package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/esign-platform/middleware"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/services/audit"
	"github.com/upb/esign-platform/services/auth"
	"github.com/upb/esign-platform/services/document"
	"github.com/upb/esign-platform/services/invitation"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

func (m *MockAuthService) LoginWithGoogle(ctx context.Context, creds auth.GoogleCredentials) (*auth.Result, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, userID uuid.UUID) (*auth.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Profile), args.Error(1)
}

type MockOrganizationService struct {
	mock.Mock
}

func (m *MockOrganizationService) List(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationMembership, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OrganizationMembership), args.Error(1)
}

func (m *MockOrganizationService) Create(ctx context.Context, userID uuid.UUID, name, slug string) (*models.OrganizationMembership, error) {
	args := m.Called(ctx, userID, name, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationMembership), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, orgID, ownerID uuid.UUID, title string) (*models.Document, error) {
	args := m.Called(ctx, orgID, ownerID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, orgID uuid.UUID, limit, offset int) (*document.Page, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Page), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) Invite(ctx context.Context, orgID, inviterID, documentID uuid.UUID, email string) (*invitation.Details, error) {
	args := m.Called(ctx, orgID, inviterID, documentID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invitation.Details), args.Error(1)
}

func (m *MockInvitationService) Lookup(ctx context.Context, email, token string) (*invitation.Details, error) {
	args := m.Called(ctx, email, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invitation.Details), args.Error(1)
}

func (m *MockInvitationService) Accept(ctx context.Context, userID uuid.UUID, email, token string) (*models.OrganizationMembership, error) {
	args := m.Called(ctx, userID, email, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationMembership), args.Error(1)
}

func (m *MockInvitationService) ListForDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error) {
	args := m.Called(ctx, orgID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invitation), args.Error(1)
}

// asUser attaches an authenticated caller, and optionally a tenant, to req.
func asUser(req *http.Request, userID uuid.UUID, orgID uuid.UUID) *http.Request {
	ctx := middleware.WithPrincipal(req.Context(), &auth.Principal{UserID: userID, Email: "user@example.com"})
	if orgID != uuid.Nil {
		ctx = middleware.WithOrgID(ctx, orgID)
	}
	return req.WithContext(ctx)
}

type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) List(ctx context.Context, orgID uuid.UUID, limit, offset int) (*audit.Page, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Page), args.Error(1)
}
