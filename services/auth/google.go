package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/esign-platform/config"
)

var (
	// ErrNoCredential is returned when none of id_token, access_token or
	// code is present.
	ErrNoCredential = errors.New("one of id_token, access_token or code is required")

	// ErrInvalidIssuer is returned when the id_token was not issued by Google
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the id_token was minted for
	// another client
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrJWKSFetchFailed is returned when JWKS fetching fails
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// googleIssuers are the iss values Google puts in id_tokens.
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleCredentials is what the mobile app sends after Google sign-in. Any
// one field is enough.
type GoogleCredentials struct {
	IDToken     string `json:"id_token" validate:"required_without_all=AccessToken Code"`
	AccessToken string `json:"access_token" validate:"required_without_all=IDToken Code"`
	Code        string `json:"code" validate:"required_without_all=IDToken AccessToken"`
}

// Empty reports whether no credential was supplied.
func (c GoogleCredentials) Empty() bool {
	return c.IDToken == "" && c.AccessToken == "" && c.Code == ""
}

// GoogleIdentity is a verified Google account.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityResolver turns mobile credentials into a verified identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds GoogleCredentials) (*GoogleIdentity, error)
}

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// googleClaims are the id_token claims we read.
type googleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// tokenResponse is the OAuth2 token endpoint response
type tokenResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// userInfo is the OpenID userinfo response
type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleClient verifies Google credentials. id_tokens are checked against
// Google's JWKS, access tokens through the userinfo endpoint, and codes are
// exchanged for an id_token first.
type GoogleClient struct {
	cfg        config.GoogleConfig
	audiences  []string
	httpClient *http.Client

	// Cache for JWKS
	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	// Cache for parsed public keys
	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewGoogleClient creates a GoogleClient. A nil httpClient uses a client
// with a 10s timeout.
func NewGoogleClient(cfg config.GoogleConfig, httpClient *http.Client) *GoogleClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleClient{
		cfg:          cfg,
		audiences:    cfg.GoogleAudiences(),
		httpClient:   httpClient,
		jwksCacheTTL: time.Hour,
		keyCache:     make(map[string]*rsa.PublicKey),
	}
}

// Resolve implements IdentityResolver. The id_token wins over the code, and
// the code over the access token.
func (g *GoogleClient) Resolve(ctx context.Context, creds GoogleCredentials) (*GoogleIdentity, error) {
	switch {
	case creds.IDToken != "":
		return g.VerifyIDToken(ctx, creds.IDToken)
	case creds.Code != "":
		idToken, err := g.ExchangeCode(ctx, creds.Code)
		if err != nil {
			return nil, err
		}
		return g.VerifyIDToken(ctx, idToken)
	case creds.AccessToken != "":
		return g.UserInfo(ctx, creds.AccessToken)
	default:
		return nil, ErrNoCredential
	}
}

// VerifyIDToken validates a Google id_token and returns its identity
func (g *GoogleClient) VerifyIDToken(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		publicKey, err := g.getPublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("verify id_token: token is not valid")
	}

	if !containsAny([]string{claims.Issuer}, googleIssuers) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIssuer, claims.Issuer)
	}
	if !containsAny(claims.Audience, g.audiences) {
		return nil, ErrInvalidAudience
	}
	if claims.Subject == "" {
		return nil, errors.New("verify id_token: missing subject")
	}

	return &GoogleIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

// ExchangeCode exchanges a server auth code for an id_token
func (g *GoogleClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	if g.cfg.ClientID == "" || g.cfg.TokenURL == "" {
		return "", fmt.Errorf("google not configured")
	}

	data := url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {g.cfg.ClientID},
		"code":       {code},
	}
	if g.cfg.ClientSecret != "" {
		data.Set("client_secret", g.cfg.ClientSecret)
	}
	if g.cfg.RedirectURI != "" {
		data.Set("redirect_uri", g.cfg.RedirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := g.do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.IDToken == "" {
		return "", fmt.Errorf("no id_token in response")
	}
	return tokenResp.IDToken, nil
}

// UserInfo resolves an access token through the userinfo endpoint
func (g *GoogleClient) UserInfo(ctx context.Context, accessToken string) (*GoogleIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := g.do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse userinfo response: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("userinfo response has no sub")
	}

	return &GoogleIdentity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}

func (g *GoogleClient) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// FetchJWKS fetches Google's signing keys
func (g *GoogleClient) FetchJWKS(ctx context.Context) (*JWKS, error) {
	g.cacheMu.RLock()
	if g.jwksCache != nil && time.Now().Before(g.jwksCacheExp) {
		defer g.cacheMu.RUnlock()
		return g.jwksCache, nil
	}
	g.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	g.cacheMu.Lock()
	g.jwksCache = &jwks
	g.jwksCacheExp = time.Now().Add(g.jwksCacheTTL)
	g.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey retrieves the public key for a given kid. Google rotates keys,
// so an unknown kid forces one JWKS refresh.
func (g *GoogleClient) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	g.keyCacheMu.RLock()
	if key, exists := g.keyCache[kid]; exists {
		g.keyCacheMu.RUnlock()
		return key, nil
	}
	g.keyCacheMu.RUnlock()

	jwk, err := g.findKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if jwk == nil {
		g.InvalidateCache()
		if jwk, err = g.findKey(ctx, kid); err != nil {
			return nil, err
		}
	}
	if jwk == nil {
		return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
	}

	publicKey, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK to RSA public key: %w", err)
	}

	g.keyCacheMu.Lock()
	g.keyCache[kid] = publicKey
	g.keyCacheMu.Unlock()

	return publicKey, nil
}

func (g *GoogleClient) findKey(ctx context.Context, kid string) (*JWK, error) {
	jwks, err := g.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i], nil
		}
	}
	return nil, nil
}

// InvalidateCache drops cached keys
func (g *GoogleClient) InvalidateCache() {
	g.cacheMu.Lock()
	g.jwksCache = nil
	g.jwksCacheExp = time.Time{}
	g.cacheMu.Unlock()

	g.keyCacheMu.Lock()
	g.keyCache = make(map[string]*rsa.PublicKey)
	g.keyCacheMu.Unlock()
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

func containsAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
