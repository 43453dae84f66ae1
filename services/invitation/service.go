// Package invitation invites signers to documents and lets them join the
// inviting organization.
package invitation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/mail"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"go.uber.org/zap"
)

// Details is an invitation with the names a landing page shows.
type Details struct {
	*models.Invitation
	DocumentTitle    string `json:"document_title"`
	OrganizationName string `json:"organization_name"`
	MailDelivered    bool   `json:"mail_delivered"`
}

// Config holds invitation settings.
type Config struct {
	// FrontEndURL is the base of invitation links.
	FrontEndURL string
	// TTL is how long a link stays valid.
	TTL time.Duration
}

// Service implements invitations.
type Service struct {
	repos    *repositories.Repositories
	txMgr    repositories.TransactionManager
	mailer   mail.Mailer
	cfg      Config
	metrics  observability.Metrics
	activity services.ActivityRecorder
	throttle services.Throttle
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an invitation service.
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	mailer mail.Mailer,
	cfg Config,
	metrics observability.Metrics,
	logger *zap.Logger,
) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = models.DefaultInvitationTTL
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Service{
		repos:    repos,
		txMgr:    txMgr,
		mailer:   mailer,
		cfg:      cfg,
		metrics:  metrics,
		activity: services.NopRecorder{},
		throttle: services.NopThrottle{},
		logger:   logger,
		now:      time.Now,
	}
}

// WithActivity makes the service record sent and accepted invitations to rec.
func (s *Service) WithActivity(rec services.ActivityRecorder) *Service {
	s.activity = rec
	return s
}

// WithThrottle limits how many invitations an organization may send. The
// throttle is keyed by organization id.
func (s *Service) WithThrottle(t services.Throttle) *Service {
	s.throttle = t
	return s
}

// Invite creates an invitation for email to sign documentID and mails the
// link. A draft document moves to sent. A mail failure is logged and
// reported through MailDelivered; the invitation stays valid.
func (s *Service) Invite(ctx context.Context, orgID, inviterID, documentID uuid.UUID, email string) (*Details, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, services.ErrInvalidEmail.ForField("email")
	}
	if err := s.throttle.Check(ctx, orgID.String()); err != nil {
		return nil, err
	}

	doc, err := s.repos.Documents.GetByID(ctx, orgID, documentID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrDocumentNotFound, nil)
	}
	if doc.Status == models.DocumentCompleted {
		return nil, services.ErrDocumentNotEditable
	}

	org, err := s.repos.Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrOrganizationNotFound, nil)
	}

	inviter, err := s.repos.Users.GetByID(ctx, inviterID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrUserNotFound, nil)
	}

	inv := models.NewInvitation(orgID, documentID, inviterID, email, s.cfg.TTL)
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.repos.Invitations.Create(ctx, inv); err != nil {
			return services.MapRepositoryError(err, nil, nil)
		}
		if doc.Status == models.DocumentDraft {
			if err := s.repos.Documents.UpdateStatus(ctx, orgID, documentID, models.DocumentSent); err != nil {
				return services.MapRepositoryError(err, services.ErrDocumentNotFound, nil)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.throttle.Hit(ctx, orgID.String())
	s.metrics.RecordInvitation(ctx, observability.InvitationSent)

	details := &Details{
		Invitation:       inv,
		DocumentTitle:    doc.Title,
		OrganizationName: org.Name,
	}
	details.MailDelivered = s.deliver(ctx, details, inviter.Name)

	s.activity.Record(ctx, models.NewAuditLog(orgID, models.AuditActionInvitationSent, models.ResourceInvitation).
		WithUser(inviterID).
		WithResource(inv.ID).
		WithDetails(map[string]interface{}{
			"document_id":    documentID,
			"email":          email,
			"mail_delivered": details.MailDelivered,
		}))

	s.logger.Info("signer invited",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("document_id", documentID.String()),
		zap.String("org_id", orgID.String()),
		zap.Bool("mail_delivered", details.MailDelivered))
	return details, nil
}

func (s *Service) deliver(ctx context.Context, d *Details, inviterName string) bool {
	msg, err := mail.RenderInvitation(s.cfg.FrontEndURL, mail.Invitation{
		Email:            d.Email,
		Token:            d.Token,
		OrganizationName: d.OrganizationName,
		DocumentTitle:    d.DocumentTitle,
		InviterName:      inviterName,
		ExpiresAt:        d.ExpiresAt,
	})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.metrics.RecordInvitation(ctx, observability.InvitationMailFail)
		s.logger.Error("failed to deliver invitation",
			zap.String("invitation_id", d.ID.String()),
			zap.Error(err))
		return false
	}
	return true
}

// Lookup resolves the email and token of an invitation link. Unknown and
// expired links are ErrInvitationNotFound.
func (s *Service) Lookup(ctx context.Context, email, token string) (*Details, error) {
	inv, err := s.find(ctx, email, token)
	if err != nil {
		return nil, err
	}

	details := &Details{Invitation: inv}
	if doc, err := s.repos.Documents.GetByID(ctx, inv.OrgID, inv.DocumentID); err == nil {
		details.DocumentTitle = doc.Title
	}
	if org, err := s.repos.Organizations.GetByID(ctx, inv.OrgID); err == nil {
		details.OrganizationName = org.Name
	}
	return details, nil
}

// Accept adds userID to the inviting organization and marks the invitation
// accepted. The user's email must be the invited one. An existing membership
// keeps its role.
func (s *Service) Accept(ctx context.Context, userID uuid.UUID, email, token string) (*models.OrganizationMembership, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrUserNotFound, nil)
	}
	if models.NormalizeEmail(email) != user.Email {
		return nil, services.ErrInvitationEmailMismatch
	}

	result, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.OrganizationMembership, error) {
		inv, err := s.find(ctx, email, token)
		if err != nil {
			return nil, err
		}
		if !inv.IsPending() {
			return nil, services.ErrInvitationAccepted
		}

		if err := s.repos.Memberships.Add(ctx, models.NewMembership(inv.OrgID, userID, models.RoleMember)); err != nil {
			return nil, services.MapRepositoryError(err, nil, nil)
		}
		if err := s.repos.Invitations.MarkAccepted(ctx, inv.ID, s.now().UTC()); err != nil {
			return nil, services.MapRepositoryError(err, services.ErrInvitationAccepted, nil)
		}

		org, err := s.repos.Organizations.GetByID(ctx, inv.OrgID)
		if err != nil {
			return nil, services.MapRepositoryError(err, services.ErrOrganizationNotFound, nil)
		}
		m, err := s.repos.Memberships.Get(ctx, inv.OrgID, userID)
		if err != nil {
			return nil, services.MapRepositoryError(err, services.ErrNotMember, nil)
		}
		return &models.OrganizationMembership{Organization: *org, Role: m.Role}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitation(ctx, observability.InvitationAccepted)
	s.activity.Record(ctx, models.NewAuditLog(result.ID, models.AuditActionInvitationAccepted, models.ResourceInvitation).
		WithUser(userID).
		WithDetails(map[string]interface{}{"email": models.NormalizeEmail(email), "role": result.Role}))
	s.logger.Info("invitation accepted",
		zap.String("org_id", result.ID.String()),
		zap.String("user_id", userID.String()))
	return result, nil
}

// ListForDocument returns a document's invitations.
func (s *Service) ListForDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error) {
	if _, err := s.repos.Documents.GetByID(ctx, orgID, documentID); err != nil {
		return nil, services.MapRepositoryError(err, services.ErrDocumentNotFound, nil)
	}
	invs, err := s.repos.Invitations.ListByDocument(ctx, orgID, documentID)
	if err != nil {
		return nil, services.MapRepositoryError(err, nil, nil)
	}
	return invs, nil
}

func (s *Service) find(ctx context.Context, email, token string) (*models.Invitation, error) {
	email = models.NormalizeEmail(email)
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return nil, services.ErrInvitationNotFound
	}

	inv, err := s.repos.Invitations.GetByEmailAndToken(ctx, email, token)
	if err != nil {
		return nil, services.MapRepositoryError(err, services.ErrInvitationNotFound, nil)
	}
	if inv.IsPending() && inv.IsExpired(s.now()) {
		return nil, services.ErrInvitationNotFound
	}
	return inv, nil
}
