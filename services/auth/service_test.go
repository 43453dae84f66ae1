package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"github.com/upb/esign-platform/services/servicetest"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type recordedLogin struct {
	method  string
	outcome string
}

type recordingMetrics struct {
	observability.NopMetrics
	mu     sync.Mutex
	logins []recordedLogin
}

func (m *recordingMetrics) RecordLogin(_ context.Context, method, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, recordedLogin{method, outcome})
}

type resolverFunc func(ctx context.Context, creds GoogleCredentials) (*GoogleIdentity, error)

func (f resolverFunc) Resolve(ctx context.Context, creds GoogleCredentials) (*GoogleIdentity, error) {
	return f(ctx, creds)
}

type fixture struct {
	repos   *servicetest.Repositories
	metrics *recordingMetrics
	svc     *Service
}

func newFixture(t *testing.T, google IdentityResolver) *fixture {
	t.Helper()
	repos := servicetest.NewRepositories()
	metrics := &recordingMetrics{}
	svc := NewService(repos.Bundle(), repos.Tx, NewTokenIssuer(testSecret, "esign-platform", time.Hour), google, metrics, zap.NewNop())
	svc.bcryptCost = bcrypt.MinCost
	t.Cleanup(func() { repos.AssertExpectations(t) })
	return &fixture{repos: repos, metrics: metrics, svc: svc}
}

func passwordUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.NewUser("ana@example.com", "Ana")
	user.PasswordHash = string(hash)
	return user
}

func TestService_Register(t *testing.T) {
	f := newFixture(t, nil)
	rec := &servicetest.Recorder{}
	f.svc.WithActivity(rec)
	ctx := context.Background()

	var created *models.User
	f.repos.Users.On("Create", servicetest.InTxContext, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.User) }).
		Return(nil)
	f.repos.Organizations.On("Create", servicetest.InTxContext, mock.MatchedBy(func(org *models.Organization) bool {
		return org.Name == "Acme" && models.ValidSlug(org.Slug)
	})).Return(nil)
	f.repos.Memberships.On("Add", servicetest.InTxContext, mock.MatchedBy(func(m *models.Membership) bool {
		return m.Role == models.RoleAdmin && m.UserID == created.ID
	})).Return(nil)

	result, err := f.svc.Register(ctx, RegisterInput{
		Name:             "Ana",
		Email:            " Ana@Example.com ",
		Password:         "correct horse",
		OrganizationName: "Acme",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", result.User.Email)
	assert.Equal(t, TokenType, result.TokenType)
	require.NotNil(t, result.Organization)
	assert.Equal(t, models.RoleAdmin, result.Organization.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")))
	assert.Equal(t, 1, f.repos.Tx.Committed)

	principal, err := f.svc.Authenticate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, principal.UserID)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionOrganizationCreated, entries[0].Action)
	assert.Equal(t, result.Organization.ID, entries[0].OrgID)
	assert.Equal(t, created.ID, *entries[0].UserID)
}

func TestService_RegisterValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "nope", Password: "long enough"})
	assert.ErrorIs(t, err, services.ErrInvalidEmail)

	_, err = f.svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "short"})
	assert.True(t, services.IsValidationError(err))
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.repos.Users.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("create user: %w", repositories.ErrDuplicate))

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@b.com", Password: "long enough"})
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))
	assert.Contains(t, err.Error(), "email already exists")
	assert.Equal(t, 1, f.repos.Tx.RolledBack)
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	user := passwordUser(t, "s3cret-pass")
	org := &models.OrganizationMembership{Organization: *models.NewOrganization("Acme", "acme"), Role: models.RoleMember}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(user, nil)
		f.repos.Organizations.On("ListForUser", ctx, user.ID).Return([]*models.OrganizationMembership{org}, nil)

		result, err := f.svc.Login(ctx, "ana@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, org, result.Organization)
		assert.Equal(t, []recordedLogin{{observability.LoginPassword, observability.OutcomeSuccess}}, f.metrics.logins)
	})

	t.Run("no organizations", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(user, nil)
		f.repos.Organizations.On("ListForUser", ctx, user.ID).Return([]*models.OrganizationMembership{}, nil)

		result, err := f.svc.Login(ctx, "ana@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.Nil(t, result.Organization)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(user, nil)

		_, err := f.svc.Login(ctx, "ana@example.com", "guess")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
		assert.Equal(t, []recordedLogin{{observability.LoginPassword, observability.OutcomeFailure}}, f.metrics.logins)
	})

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repos.Users.On("GetByEmail", ctx, "who@example.com").Return(nil, repositories.ErrNotFound)

		_, err := f.svc.Login(ctx, "who@example.com", "guess")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("google-only account", func(t *testing.T) {
		f := newFixture(t, nil)
		googleUser := models.NewUser("g@example.com", "G")
		googleUser.GoogleSub = "sub"
		f.repos.Users.On("GetByEmail", ctx, "g@example.com").Return(googleUser, nil)

		_, err := f.svc.Login(ctx, "g@example.com", "anything")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("database failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(nil, errors.New("connection refused"))

		_, err := f.svc.Login(ctx, "ana@example.com", "s3cret-pass")
		assert.True(t, services.IsInternalError(err))
	})

	t.Run("repeated failures are throttled", func(t *testing.T) {
		f := newFixture(t, nil)
		throttle := &servicetest.Throttle{Limit: 2, Err: services.ErrRateLimited}
		f.svc.WithThrottle(throttle)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(user, nil).Twice()

		for i := 0; i < 2; i++ {
			_, err := f.svc.Login(ctx, "ana@example.com", "guess")
			assert.ErrorIs(t, err, services.ErrInvalidCredentials)
		}
		assert.Equal(t, 2, throttle.Hits("ana@example.com"))

		_, err := f.svc.Login(ctx, " Ana@Example.com", "s3cret-pass")
		assert.True(t, services.IsRateLimitedError(err))
		assert.Len(t, f.metrics.logins, 3)
	})

	t.Run("success is not counted", func(t *testing.T) {
		f := newFixture(t, nil)
		throttle := &servicetest.Throttle{Limit: 1, Err: services.ErrRateLimited}
		f.svc.WithThrottle(throttle)
		f.repos.Users.On("GetByEmail", ctx, "ana@example.com").Return(user, nil)
		f.repos.Organizations.On("ListForUser", ctx, user.ID).Return([]*models.OrganizationMembership{}, nil)

		_, err := f.svc.Login(ctx, "ana@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.Zero(t, throttle.Hits("ana@example.com"))
	})
}

func TestService_LoginWithGoogle(t *testing.T) {
	identity := &GoogleIdentity{Subject: "sub-1", Email: "ana@example.com", EmailVerified: true, Name: "Ana"}
	resolver := resolverFunc(func(context.Context, GoogleCredentials) (*GoogleIdentity, error) {
		return identity, nil
	})
	creds := GoogleCredentials{IDToken: "id-token"}

	t.Run("known subject", func(t *testing.T) {
		f := newFixture(t, resolver)
		user := models.NewUser("ana@example.com", "Ana")
		user.GoogleSub = "sub-1"
		f.repos.Users.On("GetByGoogleSub", servicetest.InTxContext, "sub-1").Return(user, nil)
		f.repos.Organizations.On("ListForUser", mock.Anything, user.ID).Return([]*models.OrganizationMembership{}, nil)

		result, err := f.svc.LoginWithGoogle(context.Background(), creds)
		require.NoError(t, err)
		assert.Equal(t, user, result.User)
		assert.Equal(t, []recordedLogin{{observability.LoginGoogle, observability.OutcomeSuccess}}, f.metrics.logins)
	})

	t.Run("links an existing password account", func(t *testing.T) {
		f := newFixture(t, resolver)
		user := passwordUser(t, "s3cret-pass")
		f.repos.Users.On("GetByGoogleSub", mock.Anything, "sub-1").Return(nil, repositories.ErrNotFound)
		f.repos.Users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		f.repos.Users.On("Update", servicetest.InTxContext, mock.MatchedBy(func(u *models.User) bool {
			return u.GoogleSub == "sub-1" && u.HasPassword()
		})).Return(nil)
		f.repos.Organizations.On("ListForUser", mock.Anything, user.ID).Return([]*models.OrganizationMembership{}, nil)

		_, err := f.svc.LoginWithGoogle(context.Background(), creds)
		require.NoError(t, err)
	})

	t.Run("creates a new user", func(t *testing.T) {
		f := newFixture(t, resolver)
		f.repos.Users.On("GetByGoogleSub", mock.Anything, "sub-1").Return(nil, repositories.ErrNotFound)
		f.repos.Users.On("GetByEmail", mock.Anything, "ana@example.com").Return(nil, repositories.ErrNotFound)
		f.repos.Users.On("Create", servicetest.InTxContext, mock.MatchedBy(func(u *models.User) bool {
			return u.GoogleSub == "sub-1" && u.Email == "ana@example.com" && !u.HasPassword()
		})).Return(nil)
		f.repos.Organizations.On("ListForUser", mock.Anything, mock.Anything).Return([]*models.OrganizationMembership{}, nil)

		result, err := f.svc.LoginWithGoogle(context.Background(), creds)
		require.NoError(t, err)
		assert.Equal(t, "Ana", result.User.Name)
	})

	t.Run("unverified email is not linked", func(t *testing.T) {
		unverified := resolverFunc(func(context.Context, GoogleCredentials) (*GoogleIdentity, error) {
			return &GoogleIdentity{Subject: "sub-9", Email: "ana@example.com"}, nil
		})
		f := newFixture(t, unverified)
		f.repos.Users.On("GetByGoogleSub", mock.Anything, "sub-9").Return(nil, repositories.ErrNotFound)

		_, err := f.svc.LoginWithGoogle(context.Background(), creds)
		assert.ErrorIs(t, err, services.ErrInvalidGoogleToken)
	})

	t.Run("rejected credential", func(t *testing.T) {
		f := newFixture(t, resolverFunc(func(context.Context, GoogleCredentials) (*GoogleIdentity, error) {
			return nil, ErrInvalidAudience
		}))

		_, err := f.svc.LoginWithGoogle(context.Background(), creds)
		assert.True(t, services.IsUnauthorizedError(err))
		assert.ErrorIs(t, err, ErrInvalidAudience)
		assert.Equal(t, []recordedLogin{{observability.LoginGoogle, observability.OutcomeFailure}}, f.metrics.logins)
	})

	t.Run("google keys unavailable", func(t *testing.T) {
		f := newFixture(t, resolverFunc(func(context.Context, GoogleCredentials) (*GoogleIdentity, error) {
			return nil, fmt.Errorf("%w: status code 503", ErrJWKSFetchFailed)
		}))

		_, err := f.svc.LoginWithGoogle(context.Background(), creds)
		assert.True(t, services.IsExternalError(err))
	})

	t.Run("empty credentials", func(t *testing.T) {
		f := newFixture(t, resolver)
		_, err := f.svc.LoginWithGoogle(context.Background(), GoogleCredentials{})
		assert.True(t, services.IsValidationError(err))
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.LoginWithGoogle(context.Background(), creds)
		assert.ErrorIs(t, err, services.ErrGoogleUnavailable)
	})
}

func TestService_Me(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := models.NewUser("ana@example.com", "Ana")
	orgs := []*models.OrganizationMembership{{Organization: *models.NewOrganization("Acme", "acme"), Role: models.RoleAdmin}}

	f.repos.Users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.repos.Organizations.On("ListForUser", ctx, user.ID).Return(orgs, nil)

	profile, err := f.svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, profile.User)
	assert.Equal(t, orgs, profile.Organizations)

	missing := models.NewUser("x@example.com", "X")
	f.repos.Users.On("GetByID", ctx, missing.ID).Return(nil, repositories.ErrNotFound)
	_, err = f.svc.Me(ctx, missing.ID)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}
