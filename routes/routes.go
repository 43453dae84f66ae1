package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/esign-platform/app"
	"github.com/upb/esign-platform/handlers"
	"github.com/upb/esign-platform/internal/guard"
	"github.com/upb/esign-platform/internal/observability"
	"github.com/upb/esign-platform/models"
	authmw "github.com/upb/esign-platform/middleware"
	"github.com/upb/esign-platform/utils"
)

// defaultAllowedOrigins is used when CORS_ALLOWED_ORIGINS is unset.
var defaultAllowedOrigins = []string{"http://localhost:*", "https://*"}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if deps.Config.Observability.MetricsEnabled {
		r.Use(observability.MetricsMiddleware(deps.Metrics))
	}

	origins := deps.Config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", authmw.TenantHeader, "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.DB, logger)
	authHandler := handlers.NewAuthHandler(deps.Auth, handlers.SessionCookie{
		Name:   deps.Config.Auth.CookieName,
		Secure: deps.SecureCookies(),
		MaxAge: deps.Tokens.TTL(),
	}, logger)
	orgHandler := handlers.NewOrganizationHandler(deps.Organizations, logger)
	docHandler := handlers.NewDocumentHandler(deps.Documents, deps.Invitations, logger)
	invitationHandler := handlers.NewInvitationHandler(deps.Invitations, logger)
	activityHandler := handlers.NewActivityHandler(deps.Audit, logger)
	authn := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/google/mobile", authHandler.HandleGoogleMobile)
			r.Post("/logout", authHandler.HandleLogout)
		})
		r.Get("/invitations/lookup", invitationHandler.HandleLookup)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)

			r.Get("/me", authHandler.HandleMe)
			r.Get("/organizations", orgHandler.HandleList)
			r.Post("/organizations", orgHandler.HandleCreate)
			r.Post("/invitations/accept", invitationHandler.HandleAccept)

			// Tenant-scoped routes
			r.Route("/documents", func(r chi.Router) {
				r.Use(authn.RequireTenant(deps.Organizations))
				r.Get("/", docHandler.HandleList)
				r.Post("/", docHandler.HandleCreate)
				r.Get("/{id}", docHandler.HandleGet)
				r.Get("/{id}/invitations", docHandler.HandleListInvitations)
				r.Post("/{id}/invitations", docHandler.HandleInvite)
			})

			r.Route("/activity", func(r chi.Router) {
				r.Use(authn.RequireTenant(deps.Organizations))
				r.Use(authn.RequireRole(models.RoleAdmin))
				r.Get("/", activityHandler.HandleList)
			})
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteNotFound(w, "endpoint not found")
		})
	})

	// Web client pages, gated by the route guard
	web := handlers.NewWebHandler(guard.DefaultRoutes(), guard.New(), deps.Config.Auth.CookieName, deps.Config.Server.StaticDir, logger)
	r.NotFound(web.ServeHTTP)

	return r
}
