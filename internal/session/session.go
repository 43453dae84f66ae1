// Package session holds the client-side authentication state.
//
// A Store is created once per client process and handed to the API client
// transport and the route guard. Only the Store mutates the session; every
// other component reads it.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/upb/esign-platform/internal/storage"
)

// ErrNoOrganization is returned when no current organization is persisted.
var ErrNoOrganization = errors.New("no current organization")

// Organization is the persisted current-organization record. The id may be
// written by other clients as either a JSON string or a JSON number.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// UnmarshalJSON accepts string and numeric ids.
func (o *Organization) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
		Slug string          `json:"slug"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Name = raw.Name
	o.Slug = raw.Slug
	o.ID = ""

	id := bytes.TrimSpace(raw.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	if id[0] == '"' {
		return json.Unmarshal(id, &o.ID)
	}
	var n json.Number
	if err := json.Unmarshal(id, &n); err != nil {
		return fmt.Errorf("organization id: %w", err)
	}
	o.ID = n.String()
	return nil
}

// ParseOrganization decodes a persisted current-organization record.
func ParseOrganization(raw string) (Organization, error) {
	var org Organization
	if err := json.Unmarshal([]byte(raw), &org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

// Store is the single owner of the auth session.
type Store struct {
	mu      sync.RWMutex
	token   string
	storage storage.Store
}

// NewStore creates a Store over the given persisted storage. Call Initialize
// to load a previously persisted token.
func NewStore(s storage.Store) *Store {
	return &Store{storage: s}
}

// Storage returns the persisted storage backing the session.
func (s *Store) Storage() storage.Store {
	return s.storage
}

// Initialize loads the token from persisted storage, preferring the
// current key over the legacy one.
func (s *Store) Initialize() {
	token := PersistedToken(s.storage)

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Login records token as the active session and persists it.
func (s *Store) Login(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := s.storage.Set(storage.KeyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	_ = s.storage.Delete(storage.KeyLegacyToken)

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Logout clears the token and the current organization.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	var errs []error
	for _, key := range []string{storage.KeyToken, storage.KeyLegacyToken, storage.KeyCurrentOrganization} {
		if err := s.storage.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Token returns the active token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// SetCurrentOrganization persists org as the tenant for subsequent requests.
func (s *Store) SetCurrentOrganization(org Organization) error {
	if org.ID == "" {
		return errors.New("organization id is required")
	}
	data, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("encode organization: %w", err)
	}
	return s.storage.Set(storage.KeyCurrentOrganization, string(data))
}

// CurrentOrganization reads the persisted current organization.
func (s *Store) CurrentOrganization() (Organization, error) {
	raw, ok := s.storage.Get(storage.KeyCurrentOrganization)
	if !ok || raw == "" {
		return Organization{}, ErrNoOrganization
	}
	org, err := ParseOrganization(raw)
	if err != nil {
		return Organization{}, fmt.Errorf("decode current organization: %w", err)
	}
	if org.ID == "" {
		return Organization{}, ErrNoOrganization
	}
	return org, nil
}

// PersistedToken returns the first non-empty token found under the current
// and legacy keys.
func PersistedToken(s storage.Store) string {
	for _, key := range []string{storage.KeyToken, storage.KeyLegacyToken} {
		if v, ok := s.Get(key); ok && v != "" {
			return v
		}
	}
	return ""
}
