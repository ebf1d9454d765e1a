package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

func setupConsolidatorTest(t *testing.T) (*ProfileConsolidator, *MockRemoteStore, *MockMigrator, *MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRemote := new(MockRemoteStore)
	mockMigrator := new(MockMigrator)
	mockEvents := new(MockEventPublisher)
	c := NewProfileConsolidator(mockRemote, mockMigrator, mockEvents, logger)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c, mockRemote, mockMigrator, mockEvents
}

func TestConsolidate_WriteOrderAndMerge(t *testing.T) {
	c, mockRemote, mockMigrator, mockEvents := setupConsolidatorTest(t)
	principal := domain.Principal{ID: "B", PhoneNumber: "+15551234"}
	duplicate := &domain.Profile{
		UID:          "A",
		Variant:      domain.VariantVendor,
		DisplayName:  "Ana's Stand",
		StallName:    "Fresh Farms",
		MarketCity:   "Portland",
		ContactPhone: "+15550000",
	}

	var survivorWritten *domain.Profile
	mockRemote.On("PutProfile", mock.Anything, mock.AnythingOfType("*domain.Profile")).
		Run(func(args mock.Arguments) { survivorWritten = args.Get(1).(*domain.Profile) }).
		Return(nil)
	mockMigrator.On("MigrateReferences", mock.Anything, "A", "B").Return(3, nil)
	mockRemote.On("DeleteProfile", mock.Anything, domain.VariantVendor, "A").Return(nil)
	mockEvents.On("Publish", mock.Anything, domain.SubjectIdentityConsolidated, mock.Anything).Return(nil)

	survivor, err := c.Consolidate(context.Background(), principal, duplicate)

	require.NoError(t, err)
	require.NotNil(t, survivorWritten)
	assert.Equal(t, "B", survivor.UID)
	assert.Equal(t, domain.VariantVendor, survivor.Variant)
	// Empty survivor fields take the duplicate's values.
	assert.Equal(t, "Fresh Farms", survivor.StallName)
	assert.Equal(t, "Ana's Stand", survivor.DisplayName)
	// Contact fields prefer the principal's live value over the stored one.
	assert.Equal(t, "+15551234", survivor.ContactPhone)
	assert.True(t, survivor.NeedsSync)
	assert.Equal(t, c.now(), survivor.LastUpdated)
	mockRemote.AssertExpectations(t)
	mockMigrator.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestConsolidate_SurvivorFieldWinsWhenNonEmpty(t *testing.T) {
	now := time.Now()
	survivorSeed := &domain.Profile{UID: "B", Variant: domain.VariantVendor, StallName: "B's Stall"}
	duplicate := &domain.Profile{UID: "A", Variant: domain.VariantVendor, StallName: "Fresh Farms"}

	merged := mergeProfiles(survivorSeed, duplicate, domain.Principal{ID: "B"}, now)

	assert.Equal(t, "B's Stall", merged.StallName)
}

func TestConsolidate_AvatarStateStaysExclusive(t *testing.T) {
	now := time.Now()
	survivorSeed := &domain.Profile{UID: "B", Variant: domain.VariantVendor}
	survivorSeed.SetPendingAvatar("local/avatar.jpg")
	duplicate := &domain.Profile{UID: "A", Variant: domain.VariantVendor}
	duplicate.SetRemoteAvatar("avatars/A.jpg")

	merged := mergeProfiles(survivorSeed, duplicate, domain.Principal{ID: "B"}, now)

	assert.Equal(t, domain.AvatarPendingLocal, merged.AvatarState())
	assert.Empty(t, merged.AvatarRemoteRef)

	// Without a survivor avatar the duplicate's carries over wholesale.
	merged = mergeProfiles(&domain.Profile{UID: "B"}, duplicate, domain.Principal{ID: "B"}, now)
	assert.Equal(t, domain.AvatarSyncedRemote, merged.AvatarState())
	assert.Empty(t, merged.AvatarPendingLocalRef)
}

func TestConsolidate_SurvivorWriteFailureIsFatal(t *testing.T) {
	c, mockRemote, mockMigrator, _ := setupConsolidatorTest(t)
	principal := domain.Principal{ID: "B"}
	duplicate := &domain.Profile{UID: "A", Variant: domain.VariantVendor}

	mockRemote.On("PutProfile", mock.Anything, mock.Anything).Return(errors.New("store down"))

	survivor, err := c.Consolidate(context.Background(), principal, duplicate)

	assert.Nil(t, survivor)
	assert.ErrorIs(t, err, domain.ErrConsolidationFailed)
	// Nothing destructive may happen without a durable survivor.
	mockMigrator.AssertNotCalled(t, "MigrateReferences", mock.Anything, mock.Anything, mock.Anything)
	mockRemote.AssertNotCalled(t, "DeleteProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsolidate_DuplicateDeleteFailureTolerated(t *testing.T) {
	c, mockRemote, mockMigrator, mockEvents := setupConsolidatorTest(t)
	principal := domain.Principal{ID: "B"}
	duplicate := &domain.Profile{UID: "A", Variant: domain.VariantVendor, DisplayName: "Ana"}

	mockRemote.On("PutProfile", mock.Anything, mock.Anything).Return(nil)
	mockMigrator.On("MigrateReferences", mock.Anything, "A", "B").Return(0, nil)
	mockRemote.On("DeleteProfile", mock.Anything, domain.VariantVendor, "A").Return(errors.New("delete failed"))
	mockEvents.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	survivor, err := c.Consolidate(context.Background(), principal, duplicate)

	// An orphaned, unreferenced duplicate beats two live reachable profiles.
	require.NoError(t, err)
	assert.Equal(t, "B", survivor.UID)
}

func TestConsolidate_MigrationFailureDoesNotAbort(t *testing.T) {
	c, mockRemote, mockMigrator, mockEvents := setupConsolidatorTest(t)
	principal := domain.Principal{ID: "B"}
	duplicate := &domain.Profile{UID: "A", Variant: domain.VariantVendor, DisplayName: "Ana"}

	mockRemote.On("PutProfile", mock.Anything, mock.Anything).Return(nil)
	mockMigrator.On("MigrateReferences", mock.Anything, "A", "B").Return(1, errors.New("page failed"))
	mockRemote.On("DeleteProfile", mock.Anything, domain.VariantVendor, "A").Return(nil)
	mockEvents.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	survivor, err := c.Consolidate(context.Background(), principal, duplicate)

	require.NoError(t, err)
	assert.Equal(t, "B", survivor.UID)
	mockRemote.AssertExpectations(t)
}
