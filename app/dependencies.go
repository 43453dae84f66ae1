package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/upb/esign-platform/config"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/mail"
	"github.com/upb/esign-platform/middleware"
	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/repositories/postgres"
	"github.com/upb/esign-platform/services/audit"
	"github.com/upb/esign-platform/services/auth"
	"github.com/upb/esign-platform/services/document"
	"github.com/upb/esign-platform/services/invitation"
	"github.com/upb/esign-platform/services/organization"
	"github.com/upb/esign-platform/services/ratelimit"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Metrics
	Registry *prometheus.Registry
	Metrics  observability.Metrics

	// Outbound
	Mailer mail.Mailer
	Google *auth.GoogleClient

	// Services
	Tokens          *auth.TokenIssuer
	Auth            *auth.Service
	Organizations   *organization.Service
	Documents       *document.Service
	Invitations     *invitation.Service
	Audit           *audit.Service
	RateLimits      *ratelimit.Service
	MembershipCache *organization.MembershipCache

	AuthMiddleware *middleware.AuthMiddleware

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

// NewDependencies opens the database and wires up all application
// dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.GetDB().PingContext(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: database ping failed: %w", err)
	}

	deps, err := NewDependenciesWithFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires every dependency over an already open
// repository factory.
func NewDependenciesWithFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()
	deps.initMetrics(cfg)

	if err := deps.initMailer(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	d.Registry = prometheus.NewRegistry()
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewPrometheusMetrics(d.Registry)
}

func (d *Dependencies) initMailer(cfg *config.Config) error {
	mailer, err := mail.New(cfg.Mail, d.Logger)
	if err != nil {
		return err
	}
	d.Mailer = mailer
	d.Logger.Info("mailer initialized", zap.String("driver", cfg.Mail.Driver))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("JWT secret is required in production")
		}
		generated, err := randomSecret()
		if err != nil {
			return err
		}
		secret = generated
		d.Logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	d.Tokens = auth.NewTokenIssuer(secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	if cfg.Google.ClientID == "" {
		d.Logger.Warn("google client not configured, mobile Google sign-in disabled")
	} else {
		d.Google = auth.NewGoogleClient(cfg.Google, nil)
		d.Logger.Info("google sign-in enabled",
			zap.Strings("audiences", cfg.Google.GoogleAudiences()))
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, cfg.Auth.CookieName, d.Logger)
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Audit = audit.NewService(d.Repos.Audit, d.Logger, audit.Config{
		BufferSize:  cfg.Observability.ActivityBuffer,
		WorkerCount: cfg.Observability.ActivityWorkers,
	})
	if err := d.Audit.Start(); err != nil {
		return err
	}

	// A nil *GoogleClient must not become a non-nil interface.
	var google auth.IdentityResolver
	if d.Google != nil {
		google = d.Google
	}

	rl := cfg.RateLimit
	d.RateLimits = ratelimit.NewService(d.Repos.RateLimits, d.Logger)
	loginLimiter := d.RateLimits.NewLimiter("login",
		ratelimit.Rule{Window: rl.LoginWindow, Limit: rl.LoginFailures})
	inviteLimiter := d.RateLimits.NewLimiter("invite",
		ratelimit.Rule{Window: time.Hour, Limit: rl.InvitesPerHour},
		ratelimit.Rule{Window: 24 * time.Hour, Limit: rl.InvitesPerDay})

	if cfg.Auth.MembershipCacheTTL > 0 {
		d.MembershipCache = organization.NewMembershipCache(cfg.Auth.MembershipCacheSize, cfg.Auth.MembershipCacheTTL)
	}
	d.startCleanup(rl.CleanupInterval, rl.Retention, cfg.Auth.MembershipCacheTTL)

	d.Auth = auth.NewService(d.Repos, d.TxManager, d.Tokens, google, d.Metrics, d.Logger).
		WithActivity(d.Audit).
		WithThrottle(loginLimiter)
	d.Organizations = organization.NewService(d.Repos, d.TxManager, d.Logger).
		WithActivity(d.Audit).
		WithCache(d.MembershipCache)
	d.Documents = document.NewService(d.Repos.Documents, d.Logger).
		WithActivity(d.Audit)
	d.Invitations = invitation.NewService(d.Repos, d.TxManager, d.Mailer, invitation.Config{
		FrontEndURL: cfg.FrontEndURL,
	}, d.Metrics, d.Logger).
		WithActivity(d.Audit).
		WithThrottle(inviteLimiter)
	d.Logger.Info("services initialized")
	return nil
}

// startCleanup runs the background sweepers until Close.
func (d *Dependencies) startCleanup(interval, retention, cacheTTL time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	d.stopCleanup = cancel
	d.cleanupDone = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.RateLimits.StartCleanupWorker(ctx, interval, retention)
	}()
	if d.MembershipCache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.MembershipCache.StartCleanupWorker(ctx, cacheTTL)
		}()
	}

	go func() {
		wg.Wait()
		close(d.cleanupDone)
	}()
}

// SecureCookies reports whether the session cookie should be marked Secure.
func (d *Dependencies) SecureCookies() bool {
	return d.Config.Server.TLS.Enabled || strings.HasPrefix(d.Config.FrontEndURL, "https")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Stop background work before the database goes away
	if d.stopCleanup != nil {
		d.stopCleanup()
		<-d.cleanupDone
		d.stopCleanup = nil
	}
	if d.Audit != nil {
		if err := d.Audit.Stop(activityDrainTimeout(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.Audit = nil
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func activityDrainTimeout(ctx context.Context) time.Duration {
	const fallback = 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < fallback {
			return remaining
		}
	}
	return fallback
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
