package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/upb/esign-platform/internal/guard"
	"github.com/upb/esign-platform/utils"
	"go.uber.org/zap"
)

// WebHandler gates the web client's pages with the route guard. The server
// only sees whether a session cookie is present; the token itself is checked
// by the API.
type WebHandler struct {
	routes     guard.Routes
	guard      *guard.Guard
	cookieName string
	staticDir  string
	logger     *zap.Logger
}

// NewWebHandler creates a WebHandler. staticDir holds the built client; when
// empty, allowed navigations get a JSON description of the resolved route.
func NewWebHandler(routes guard.Routes, g *guard.Guard, cookieName, staticDir string, logger *zap.Logger) *WebHandler {
	return &WebHandler{
		routes:     routes,
		guard:      g,
		cookieName: cookieName,
		staticDir:  staticDir,
		logger:     logger,
	}
}

// ServeHTTP evaluates the guard for the requested page and either redirects
// or serves the client.
func (h *WebHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := h.routes.Resolve(r.URL.RequestURI())
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid URL")
		return
	}

	decision := h.guard.Evaluate(target, guard.AuthFunc(func() bool {
		return h.hasSession(r)
	}))
	if decision.Action == guard.Redirect {
		to := h.routes.URL(decision.Route)
		h.logger.Debug("navigation redirected",
			zap.String("path", target.Path),
			zap.String("to", to))
		http.Redirect(w, r, to, http.StatusFound)
		return
	}

	if h.staticDir == "" {
		_ = utils.WriteOK(w, map[string]string{
			"route": target.Name,
			"path":  target.Path,
		})
		return
	}
	h.serveStatic(w, r)
}

func (h *WebHandler) hasSession(r *http.Request) bool {
	if h.cookieName == "" {
		return false
	}
	c, err := r.Cookie(h.cookieName)
	return err == nil && c.Value != ""
}

// serveStatic serves a file from the client build, falling back to
// index.html so client-side routes load the app.
func (h *WebHandler) serveStatic(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.staticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}
