package apiclient

import (
	"net/http"

	"github.com/upb/esign-platform/internal/session"
	"github.com/upb/esign-platform/internal/storage"
	"go.uber.org/zap"
)

// Header names attached to every outgoing request.
const (
	HeaderAuthorization  = "Authorization"
	HeaderTenantID       = "X-Tenant-Id"
	HeaderRequestedWith  = "X-Requested-With"
	requestedWithAjaxVal = "XMLHttpRequest"
)

// Transport decorates outgoing requests with the session's bearer token and
// the current tenant. Persisted state is read on every request.
type Transport struct {
	Base    http.RoundTripper
	Session *session.Store
	Logger  *zap.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, sess *session.Store, logger *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{Base: base, Session: sess, Logger: logger}
}

// RoundTrip implements http.RoundTripper. Errors from the base transport are
// returned unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header == nil {
		out.Header = make(http.Header)
	}

	out.Header.Set(HeaderRequestedWith, requestedWithAjaxVal)

	if token := t.token(); token != "" {
		out.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	if tenantID := t.tenantID(); tenantID != "" {
		out.Header.Set(HeaderTenantID, tenantID)
	}

	return t.base().RoundTrip(out)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *Transport) token() string {
	if t.Session == nil {
		return ""
	}
	if token := session.PersistedToken(t.Session.Storage()); token != "" {
		return token
	}
	return t.Session.Token()
}

// tenantID returns the current organization id, or "" when none is set or
// the persisted record cannot be parsed.
func (t *Transport) tenantID() string {
	if t.Session == nil {
		return ""
	}
	raw, ok := t.Session.Storage().Get(storage.KeyCurrentOrganization)
	if !ok || raw == "" {
		return ""
	}
	org, err := session.ParseOrganization(raw)
	if err != nil {
		t.logger().Debug("ignoring unreadable current organization", zap.Error(err))
		return ""
	}
	return org.ID
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
