package app

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// --- Mocks ---

type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error) {
	args := m.Called(ctx, variant, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockRemoteStore) PutProfile(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockRemoteStore) DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error {
	args := m.Called(ctx, variant, uid)
	return args.Error(0)
}

func (m *MockRemoteStore) FindVendorByContact(ctx context.Context, field repository.ContactField, value string) (*domain.Profile, error) {
	args := m.Called(ctx, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockRemoteStore) MessagesWithParticipant(ctx context.Context, uid string, pageSize int, cursor string) (repository.MessagePage, error) {
	args := m.Called(ctx, uid, pageSize, cursor)
	return args.Get(0).(repository.MessagePage), args.Error(1)
}

func (m *MockRemoteStore) RewriteMessages(ctx context.Context, records []domain.MessageRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRemoteStore) PutMessage(ctx context.Context, record *domain.MessageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRemoteStore) DeleteMessagesWithParticipant(ctx context.Context, uid string) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}

func (m *MockRemoteStore) DeleteAuthoredBroadcasts(ctx context.Context, uid string) ([]string, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRemoteStore) DeleteFollowEdges(ctx context.Context, uid string) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}

func (m *MockRemoteStore) DeleteFeedback(ctx context.Context, uid string) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}

func (m *MockRemoteStore) DeleteKnowledgeEntries(ctx context.Context, uid string) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}

type MockLocalCache struct {
	mock.Mock
}

func (m *MockLocalCache) GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error) {
	args := m.Called(ctx, variant, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockLocalCache) PutProfile(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockLocalCache) DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error {
	args := m.Called(ctx, variant, uid)
	return args.Error(0)
}

func (m *MockLocalCache) PendingUploads(ctx context.Context, uid string) ([]domain.PendingUpload, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PendingUpload), args.Error(1)
}

func (m *MockLocalCache) PutPendingUpload(ctx context.Context, item *domain.PendingUpload) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockLocalCache) DeletePendingUploads(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockLocalCache) GetAuthCache(ctx context.Context) (*domain.AuthCacheEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthCacheEntry), args.Error(1)
}

func (m *MockLocalCache) PutAuthCache(ctx context.Context, entry *domain.AuthCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLocalCache) DeleteAuthCache(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) ListChildren(ctx context.Context, prefix string) (repository.BlobListing, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(repository.BlobListing), args.Error(1)
}

func (m *MockBlobStore) DeleteObject(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Principal(ctx context.Context, sessionToken string) (*domain.Principal, error) {
	args := m.Called(ctx, sessionToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

func (m *MockIdentityProvider) DeletePrincipal(ctx context.Context, principal domain.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

type MockDeletionTrigger struct {
	mock.Mock
}

func (m *MockDeletionTrigger) Delegate(ctx context.Context, uid string, requestedAt time.Time) error {
	args := m.Called(ctx, uid, requestedAt)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	args := m.Called(ctx, subject, payload)
	return args.Error(0)
}

type MockConsolidator struct {
	mock.Mock
}

func (m *MockConsolidator) Consolidate(ctx context.Context, principal domain.Principal, duplicate *domain.Profile) (*domain.Profile, error) {
	args := m.Called(ctx, principal, duplicate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) MigrateReferences(ctx context.Context, oldUID, newUID string) (int, error) {
	args := m.Called(ctx, oldUID, newUID)
	return args.Int(0), args.Error(1)
}
