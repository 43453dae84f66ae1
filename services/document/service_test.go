package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/services/servicetest"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *servicetest.DocumentRepository) {
	t.Helper()
	docs := new(servicetest.DocumentRepository)
	t.Cleanup(func() { docs.AssertExpectations(t) })
	return NewService(docs, zap.NewNop()), docs
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	orgID, ownerID := uuid.New(), uuid.New()

	t.Run("draft in the organization", func(t *testing.T) {
		svc, docs := newService(t)
		docs.On("Create", ctx, mock.MatchedBy(func(d *models.Document) bool {
			return d.OrgID == orgID && d.OwnerID == ownerID && d.Title == "NDA"
		})).Return(nil)

		doc, err := svc.Create(ctx, orgID, ownerID, "  NDA ")
		require.NoError(t, err)
		assert.Equal(t, models.DocumentDraft, doc.Status)
	})

	t.Run("title required", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Create(ctx, orgID, ownerID, "   ")
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("title too long", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Create(ctx, orgID, ownerID, strings.Repeat("x", 201))
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("repository failure", func(t *testing.T) {
		svc, docs := newService(t)
		rec := &servicetest.Recorder{}
		svc.WithActivity(rec)
		docs.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))
		_, err := svc.Create(ctx, orgID, ownerID, "NDA")
		assert.True(t, services.IsInternalError(err))
		assert.Empty(t, rec.Entries())
	})

	t.Run("records activity", func(t *testing.T) {
		svc, docs := newService(t)
		rec := &servicetest.Recorder{}
		svc.WithActivity(rec)
		docs.On("Create", ctx, mock.Anything).Return(nil)

		doc, err := svc.Create(ctx, orgID, ownerID, "NDA")
		require.NoError(t, err)

		entries := rec.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, models.AuditActionDocumentCreated, entries[0].Action)
		assert.Equal(t, models.ResourceDocument, entries[0].ResourceType)
		assert.Equal(t, orgID, entries[0].OrgID)
		assert.Equal(t, doc.ID, *entries[0].ResourceID)
		assert.JSONEq(t, `{"title":"NDA"}`, string(entries[0].Details))
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	page := []*models.Document{models.NewDocument(orgID, uuid.New(), "NDA")}

	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, DefaultLimit, 0},
		{"clamped", 500, 10, MaxLimit, 10},
		{"negative offset", 5, -3, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, docs := newService(t)
			docs.On("ListByOrg", ctx, orgID, tt.wantLimit, tt.wantOffset).Return(page, 41, nil)

			got, err := svc.List(ctx, orgID, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, page, got.Documents)
			assert.Equal(t, 41, got.Total)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	svc, docs := newService(t)
	orgID := uuid.New()
	doc := models.NewDocument(orgID, uuid.New(), "NDA")
	other := uuid.New()

	docs.On("GetByID", ctx, orgID, doc.ID).Return(doc, nil)
	docs.On("GetByID", ctx, other, doc.ID).Return(nil, repositories.ErrNotFound)

	got, err := svc.Get(ctx, orgID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = svc.Get(ctx, other, doc.ID)
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)
}
