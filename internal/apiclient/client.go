// Package apiclient is the Go client for the esign HTTP API.
//
// Requests pass through Transport, which attaches the session token and the
// current tenant. Responses are decoded once into an Envelope; non-2xx
// responses become *APIError, whose text is normalised by ErrorMessage and
// FormatError for display.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/upb/esign-platform/internal/session"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Client talks to the esign API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// wrapped with the request interceptor.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for baseURL using sess for authentication state.
func New(baseURL string, sess *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := &http.Client{Timeout: defaultTimeout}
	if c.httpClient != nil {
		copied := *c.httpClient
		hc = &copied
	}
	hc.Transport = NewTransport(hc.Transport, sess, c.logger)
	c.httpClient = hc

	return c
}

// Session returns the auth session used by the client.
func (c *Client) Session() *session.Store {
	return c.session
}

// Do sends a JSON request and decodes the response envelope. body may be nil.
// Non-2xx responses return *APIError; transport failures are returned as-is.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("api response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Data:       decodeErrorBody(raw),
			Header:     resp.Header.Clone(),
		}
	}

	return DecodeEnvelope(raw)
}

func decodeErrorBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}

// User is the API representation of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Profile is the signed-in user and their memberships.
type Profile struct {
	User
	Organizations []Organization `json:"organizations"`
}

// Organization is a tenant the user belongs to.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role,omitempty"`
}

// Document is a tenant-scoped document awaiting signatures.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitation describes a signing invitation as shown on the invite landing.
type Invitation struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Status           string    `json:"status"`
	DocumentID       string    `json:"document_id"`
	DocumentTitle    string    `json:"document_title,omitempty"`
	OrganizationName string    `json:"organization_name,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Activity is one entry of an organization's activity trail.
type Activity struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AuthResult is returned by the login endpoints.
type AuthResult struct {
	Token        string        `json:"token"`
	TokenType    string        `json:"token_type"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         User          `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
}

// GoogleCredentials carries whichever credential the mobile Google sign-in
// produced. At least one field must be set.
type GoogleCredentials struct {
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Code        string `json:"code,omitempty"`
}

// ErrNoGoogleCredential is returned when GoogleCredentials is empty.
var ErrNoGoogleCredential = errors.New("one of id_token, access_token or code is required")

// Login signs in with email and password and stores the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	env, err := c.Do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return c.completeLogin(env)
}

// Register creates an account with its first organization and signs in.
func (c *Client) Register(ctx context.Context, name, email, password, organization string) (*AuthResult, error) {
	env, err := c.Do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":              name,
		"email":             email,
		"password":          password,
		"organization_name": organization,
	})
	if err != nil {
		return nil, err
	}
	return c.completeLogin(env)
}

// LoginWithGoogle exchanges a mobile Google credential for a session token.
func (c *Client) LoginWithGoogle(ctx context.Context, creds GoogleCredentials) (*AuthResult, error) {
	if creds.IDToken == "" && creds.AccessToken == "" && creds.Code == "" {
		return nil, ErrNoGoogleCredential
	}
	env, err := c.Do(ctx, http.MethodPost, "/api/auth/google/mobile", creds)
	if err != nil {
		return nil, err
	}
	return c.completeLogin(env)
}

func (c *Client) completeLogin(env *Envelope) (*AuthResult, error) {
	result, err := DecodeValue[AuthResult](env)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}
	if err := c.session.Login(result.Token); err != nil {
		return nil, err
	}
	if result.Organization != nil && result.Organization.ID != "" {
		_ = c.session.SetCurrentOrganization(session.Organization{
			ID:   result.Organization.ID,
			Name: result.Organization.Name,
			Slug: result.Organization.Slug,
		})
	}
	return &result, nil
}

// Logout ends the session on the server and clears local state. Local state
// is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if clearErr := c.session.Logout(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Me returns the signed-in user with their organizations.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	env, err := c.Do(ctx, http.MethodGet, "/api/me", nil)
	if err != nil {
		return nil, err
	}
	profile, err := DecodeValue[Profile](env)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListOrganizations returns the organizations the user belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	env, err := c.Do(ctx, http.MethodGet, "/api/organizations", nil)
	if err != nil {
		return nil, err
	}
	return DecodeList[Organization](env, "organizations")
}

// CreateOrganization creates an organization owned by the user.
func (c *Client) CreateOrganization(ctx context.Context, name, slug string) (*Organization, error) {
	env, err := c.Do(ctx, http.MethodPost, "/api/organizations", map[string]string{
		"name": name,
		"slug": slug,
	})
	if err != nil {
		return nil, err
	}
	org, err := DecodeValue[Organization](env)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// ListDocuments returns the current organization's documents.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	env, err := c.Do(ctx, http.MethodGet, "/api/documents", nil)
	if err != nil {
		return nil, err
	}
	return DecodeList[Document](env, "documents")
}

// CreateDocument creates a draft document in the current organization.
func (c *Client) CreateDocument(ctx context.Context, title string) (*Document, error) {
	env, err := c.Do(ctx, http.MethodPost, "/api/documents", map[string]string{"title": title})
	if err != nil {
		return nil, err
	}
	doc, err := DecodeValue[Document](env)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// InviteSigner sends a signing invitation for documentID to email.
func (c *Client) InviteSigner(ctx context.Context, documentID, email string) (*Invitation, error) {
	path := "/api/documents/" + url.PathEscape(documentID) + "/invitations"
	env, err := c.Do(ctx, http.MethodPost, path, map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	inv, err := DecodeValue[Invitation](env)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// LookupInvitation resolves an invitation link's email and token.
func (c *Client) LookupInvitation(ctx context.Context, email, token string) (*Invitation, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	env, err := c.Do(ctx, http.MethodGet, "/api/invitations/lookup?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	inv, err := DecodeValue[Invitation](env)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// AcceptInvitation joins the inviting organization and makes it current.
func (c *Client) AcceptInvitation(ctx context.Context, email, token string) (*Organization, error) {
	env, err := c.Do(ctx, http.MethodPost, "/api/invitations/accept", map[string]string{
		"email": email,
		"token": token,
	})
	if err != nil {
		return nil, err
	}
	org, err := DecodeValue[Organization](env)
	if err != nil {
		return nil, err
	}
	if org.ID != "" {
		if err := c.session.SetCurrentOrganization(session.Organization{ID: org.ID, Name: org.Name, Slug: org.Slug}); err != nil {
			return nil, err
		}
	}
	return &org, nil
}

// ListActivity returns the newest activity of the current organization.
// Only organization admins may read it.
func (c *Client) ListActivity(ctx context.Context, limit int) ([]Activity, error) {
	path := "/api/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	env, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return DecodeList[Activity](env, "")
}
