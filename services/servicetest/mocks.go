// Package servicetest provides testify mocks of the repository layer for
// service tests.
package servicetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/esign-platform/models"
	"github.com/upb/esign-platform/repositories"
)

type txKey struct{}

// TxManager runs functions inline and records the outcome. The context
// handed to fn carries a marker so tests can assert repositories were called
// inside the transaction.
type TxManager struct {
	Committed  int
	RolledBack int
}

// InTransaction implements repositories.TransactionManager.
func (m *TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx := &Tx{ctx: context.WithValue(ctx, txKey{}, true)}
	if err := fn(tx.ctx, tx); err != nil {
		m.RolledBack++
		return err
	}
	m.Committed++
	return nil
}

// Begin implements repositories.TransactionManager.
func (m *TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &Tx{ctx: context.WithValue(ctx, txKey{}, true)}, nil
}

// InTx reports whether ctx came from a TxManager transaction.
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// InTxContext matches contexts created inside a transaction.
var InTxContext = mock.MatchedBy(InTx)

// Tx is a no-op transaction.
type Tx struct {
	ctx context.Context
}

func (t *Tx) Commit() error { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Context() context.Context { return t.ctx }

// OrganizationRepository mocks repositories.OrganizationRepository.
type OrganizationRepository struct {
	mock.Mock
}

func (m *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return m.Called(ctx, org).Error(0)
}

func (m *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Organization), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	args := m.Called(ctx, slug)
	if v := args.Get(0); v != nil {
		return v.(*models.Organization), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrganizationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.OrganizationMembership, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*models.OrganizationMembership), args.Error(1)
	}
	return nil, args.Error(1)
}

// UserRepository mocks repositories.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	args := m.Called(ctx, sub)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

// MembershipRepository mocks repositories.MembershipRepository.
type MembershipRepository struct {
	mock.Mock
}

func (m *MembershipRepository) Add(ctx context.Context, membership *models.Membership) error {
	return m.Called(ctx, membership).Error(0)
}

func (m *MembershipRepository) Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	args := m.Called(ctx, orgID, userID)
	if v := args.Get(0); v != nil {
		return v.(*models.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// DocumentRepository mocks repositories.DocumentRepository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *DocumentRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, orgID, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.Document, int, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]*models.Document), args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *DocumentRepository) UpdateStatus(ctx context.Context, orgID, id uuid.UUID, status models.DocumentStatus) error {
	return m.Called(ctx, orgID, id, status).Error(0)
}

// InvitationRepository mocks repositories.InvitationRepository.
type InvitationRepository struct {
	mock.Mock
}

func (m *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *InvitationRepository) GetByEmailAndToken(ctx context.Context, email, token string) (*models.Invitation, error) {
	args := m.Called(ctx, email, token)
	if v := args.Get(0); v != nil {
		return v.(*models.Invitation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InvitationRepository) ListByDocument(ctx context.Context, orgID, documentID uuid.UUID) ([]*models.Invitation, error) {
	args := m.Called(ctx, orgID, documentID)
	if v := args.Get(0); v != nil {
		return v.([]*models.Invitation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InvitationRepository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// AuditRepository is a mock repositories.AuditRepository. Insert is safe
// for concurrent use.
type AuditRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.AuditLog
}

func (m *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, log)
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error) {
	args := m.Called(ctx, orgID, limit, offset)
	logs, _ := args.Get(0).([]*models.AuditLog)
	return logs, args.Int(1), args.Error(2)
}

// Inserted returns the entries passed to Insert so far.
func (m *AuditRepository) Inserted() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditLog(nil), m.inserted...)
}

// Recorder is a services.ActivityRecorder that keeps what it is given.
type Recorder struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *Recorder) Record(_ context.Context, entry *models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns the recorded entries.
func (r *Recorder) Entries() []*models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLog(nil), r.entries...)
}

// RateLimitRepository mocks repositories.RateLimitRepository.
type RateLimitRepository struct {
	mock.Mock
}

func (m *RateLimitRepository) Record(ctx context.Context, scope string, at time.Time) error {
	return m.Called(ctx, scope, at).Error(0)
}

func (m *RateLimitRepository) CountSince(ctx context.Context, scope string, since time.Time) (int, error) {
	args := m.Called(ctx, scope, since)
	return args.Int(0), args.Error(1)
}

func (m *RateLimitRepository) OldestSince(ctx context.Context, scope string, since time.Time) (time.Time, error) {
	args := m.Called(ctx, scope, since)
	at, _ := args.Get(0).(time.Time)
	return at, args.Error(1)
}

func (m *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// Throttle is a services.Throttle that fails Check with Err once a key
// reached Limit hits. A zero Limit never refuses.
type Throttle struct {
	Limit int
	Err   error

	mu   sync.Mutex
	hits map[string]int
}

func (t *Throttle) Check(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Limit > 0 && t.hits[key] >= t.Limit {
		return t.Err
	}
	return nil
}

func (t *Throttle) Hit(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hits == nil {
		t.hits = make(map[string]int)
	}
	t.hits[key]++
}

// Hits returns how often key was hit.
func (t *Throttle) Hits(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits[key]
}

// Repositories bundles one mock per repository.
type Repositories struct {
	Organizations *OrganizationRepository
	Users         *UserRepository
	Memberships   *MembershipRepository
	Documents     *DocumentRepository
	Invitations   *InvitationRepository
	Audit         *AuditRepository
	RateLimits    *RateLimitRepository
	Tx            *TxManager
}

// NewRepositories returns fresh mocks.
func NewRepositories() *Repositories {
	return &Repositories{
		Organizations: new(OrganizationRepository),
		Users:         new(UserRepository),
		Memberships:   new(MembershipRepository),
		Documents:     new(DocumentRepository),
		Invitations:   new(InvitationRepository),
		Audit:         new(AuditRepository),
		RateLimits:    new(RateLimitRepository),
		Tx:            new(TxManager),
	}
}

// Bundle returns the mocks as a repositories.Repositories.
func (r *Repositories) Bundle() *repositories.Repositories {
	return &repositories.Repositories{
		Organizations: r.Organizations,
		Users:         r.Users,
		Memberships:   r.Memberships,
		Documents:     r.Documents,
		Invitations:   r.Invitations,
		Audit:         r.Audit,
		RateLimits:    r.RateLimits,
	}
}

// AssertExpectations asserts every mock.
func (r *Repositories) AssertExpectations(t mock.TestingT) {
	r.Organizations.AssertExpectations(t)
	r.Users.AssertExpectations(t)
	r.Memberships.AssertExpectations(t)
	r.Documents.AssertExpectations(t)
	r.Invitations.AssertExpectations(t)
	r.Audit.AssertExpectations(t)
	r.RateLimits.AssertExpectations(t)
}
