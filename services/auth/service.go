// Package auth signs users in with a password or a Google credential and
// issues the API tokens the rest of the server trusts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// Result is returned by every successful sign-in.
type Result struct {
	Token        string                         `json:"token"`
	TokenType    string                         `json:"token_type"`
	ExpiresAt    time.Time                      `json:"expires_at"`
	User         *models.User                   `json:"user"`
	Organization *models.OrganizationMembership `json:"organization,omitempty"`
}

// Profile is a user with their memberships.
type Profile struct {
	*models.User
	Organizations []*models.OrganizationMembership `json:"organizations"`
}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Name             string
	Email            string
	Password         string
	OrganizationName string
}

// Service implements sign-up and sign-in.
type Service struct {
	repos      *repositories.Repositories
	txMgr      repositories.TransactionManager
	tokens     *TokenIssuer
	google     IdentityResolver
	metrics    observability.Metrics
	activity   services.ActivityRecorder
	throttle   services.Throttle
	logger     *zap.Logger
	bcryptCost int
}

// NewService creates an auth service. google may be nil when Google sign-in
// is not configured.
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	tokens *TokenIssuer,
	google IdentityResolver,
	metrics observability.Metrics,
	logger *zap.Logger,
) *Service {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Service{
		repos:      repos,
		txMgr:      txMgr,
		tokens:     tokens,
		google:     google,
		metrics:    metrics,
		activity:   services.NopRecorder{},
		throttle:   services.NopThrottle{},
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithActivity makes the service record organizations created at sign-up
// to rec.
func (s *Service) WithActivity(rec services.ActivityRecorder) *Service {
	s.activity = rec
	return s
}

// WithThrottle limits failed password sign-ins. The throttle is keyed by
// normalized email and counts failures only.
func (s *Service) WithThrottle(t services.Throttle) *Service {
	s.throttle = t
	return s
}

// Tokens returns the issuer used to sign and verify API tokens.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Register creates a password account together with its first organization,
// where the new user is admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, services.ErrInvalidEmail.ForField("email")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength), nil).ForField("password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, services.WrapInternal("hash password", err)
	}

	orgName := strings.TrimSpace(in.OrganizationName)
	if orgName == "" {
		orgName = strings.TrimSpace(in.Name)
	}
	if orgName == "" {
		orgName = strings.SplitN(email, "@", 2)[0]
	}

	user := models.NewUser(email, in.Name)
	user.PasswordHash = string(hash)

	var membership *models.OrganizationMembership
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.repos.Users.Create(ctx, user); err != nil {
			return services.MapRepositoryError(err, nil, services.ErrDuplicateEmail)
		}

		org := models.NewOrganization(orgName, uniqueSlug(orgName))
		if err := s.repos.Organizations.Create(ctx, org); err != nil {
			return services.MapRepositoryError(err, nil, services.ErrDuplicateSlug)
		}

		if err := s.repos.Memberships.Add(ctx, models.NewMembership(org.ID, user.ID, models.RoleAdmin)); err != nil {
			return services.MapRepositoryError(err, nil, nil)
		}

		membership = &models.OrganizationMembership{Organization: *org, Role: models.RoleAdmin}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, models.NewAuditLog(membership.ID, models.AuditActionOrganizationCreated, models.ResourceOrganization).
		WithUser(user.ID).
		WithResource(membership.ID).
		WithDetails(map[string]interface{}{"name": membership.Name, "slug": membership.Slug, "registration": true}))

	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", membership.ID.String()))

	return s.issue(user, membership)
}

// Login checks an email and password. Once an address has too many recent
// failures further attempts are refused with ErrRateLimited.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	key := models.NormalizeEmail(email)
	if err := s.throttle.Check(ctx, key); err != nil {
		s.metrics.RecordLogin(ctx, observability.LoginPassword, observability.OutcomeFailure)
		return nil, err
	}

	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, s.loginFailed(ctx, key)
		}
		return nil, services.MapRepositoryError(err, nil, nil)
	}

	if !user.HasPassword() {
		return nil, s.loginFailed(ctx, key)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, s.loginFailed(ctx, key)
	}

	org, err := s.primaryOrganization(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(ctx, observability.LoginPassword, observability.OutcomeSuccess)
	return s.issue(user, org)
}

func (s *Service) loginFailed(ctx context.Context, key string) error {
	s.throttle.Hit(ctx, key)
	s.metrics.RecordLogin(ctx, observability.LoginPassword, observability.OutcomeFailure)
	return services.ErrInvalidCredentials
}

// LoginWithGoogle verifies a mobile Google credential and signs the matching
// user in. A user is matched by Google subject, then by verified email (the
// subject is linked on first use), and created when neither matches.
func (s *Service) LoginWithGoogle(ctx context.Context, creds GoogleCredentials) (*Result, error) {
	if creds.Empty() {
		return nil, services.ErrInvalidInput.Wrap(ErrNoCredential)
	}
	if s.google == nil {
		return nil, services.ErrGoogleUnavailable
	}

	identity, err := s.google.Resolve(ctx, creds)
	if err != nil {
		s.metrics.RecordLogin(ctx, observability.LoginGoogle, observability.OutcomeFailure)
		s.logger.Warn("google credential rejected", zap.Error(err))
		if errors.Is(err, ErrJWKSFetchFailed) {
			return nil, services.ErrGoogleUnavailable.Wrap(err)
		}
		return nil, services.ErrInvalidGoogleToken.Wrap(err)
	}

	user, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.User, error) {
		return s.findOrCreateGoogleUser(ctx, identity)
	})
	if err != nil {
		s.metrics.RecordLogin(ctx, observability.LoginGoogle, observability.OutcomeFailure)
		return nil, err
	}

	org, err := s.primaryOrganization(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(ctx, observability.LoginGoogle, observability.OutcomeSuccess)
	return s.issue(user, org)
}

func (s *Service) findOrCreateGoogleUser(ctx context.Context, identity *GoogleIdentity) (*models.User, error) {
	user, err := s.repos.Users.GetByGoogleSub(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.MapRepositoryError(err, nil, nil)
	}

	if identity.Email == "" || !identity.EmailVerified {
		return nil, services.ErrInvalidGoogleToken.Wrap(errors.New("google account email is not verified"))
	}

	user, err = s.repos.Users.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		user.GoogleSub = identity.Subject
		user.UpdatedAt = time.Now().UTC()
		if err := s.repos.Users.Update(ctx, user); err != nil {
			return nil, services.MapRepositoryError(err, services.ErrUserNotFound, services.ErrDuplicateEmail)
		}
		s.logger.Info("google account linked", zap.String("user_id", user.ID.String()))
		return user, nil
	case errors.Is(err, repositories.ErrNotFound):
		user = models.NewUser(identity.Email, identity.Name)
		user.GoogleSub = identity.Subject
		if err := s.repos.Users.Create(ctx, user); err != nil {
			return nil, services.MapRepositoryError(err, nil, services.ErrDuplicateEmail)
		}
		s.logger.Info("google user created", zap.String("user_id", user.ID.String()))
		return user, nil
	default:
		return nil, services.MapRepositoryError(err, nil, nil)
	}
}

// Me returns the user behind id with their organizations.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrUserNotFound, nil)
	}

	orgs, err := s.repos.Organizations.ListForUser(ctx, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}

	return &Profile{User: user, Organizations: orgs}, nil
}

// Authenticate verifies an API token.
func (s *Service) Authenticate(token string) (*Principal, error) {
	return s.tokens.Verify(token)
}

func (s *Service) primaryOrganization(ctx context.Context, userID uuid.UUID) (*models.OrganizationMembership, error) {
	orgs, err := s.repos.Organizations.ListForUser(ctx, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	return orgs[0], nil
}

func (s *Service) issue(user *models.User, org *models.OrganizationMembership) (*Result, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, services.WrapInternal("issue token", err)
	}
	return &Result{
		Token:        token,
		TokenType:    TokenType,
		ExpiresAt:    expiresAt,
		User:         user,
		Organization: org,
	}, nil
}

// uniqueSlug derives a slug from name with a short random suffix so that
// organizations with the same name do not collide.
func uniqueSlug(name string) string {
	base := models.Slugify(name)
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if base == "" {
		return "org-" + suffix
	}
	return base + "-" + suffix
}
