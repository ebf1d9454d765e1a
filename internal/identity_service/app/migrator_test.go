package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

func setupMigratorTest(t *testing.T) (*ReferenceMigrator, *MockRemoteStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRemote := new(MockRemoteStore)
	return NewReferenceMigrator(mockRemote, logger), mockRemote
}

func TestMigrateReferences_RewritesParticipantsAndConversationID(t *testing.T) {
	m, mockRemote := setupMigratorTest(t)

	records := []domain.MessageRecord{
		{ID: "m1", Participants: []string{"A", "C"}, FromUID: "A", ToUID: "C", ConversationID: "A_C"},
		{ID: "m2", Participants: []string{"C", "A"}, FromUID: "C", ToUID: "A", ConversationID: "A_C"},
	}
	mockRemote.On("MessagesWithParticipant", mock.Anything, "A", migrationPageSize, "").
		Return(repository.MessagePage{Records: records}, nil)

	var rewritten []domain.MessageRecord
	mockRemote.On("RewriteMessages", mock.Anything, mock.AnythingOfType("[]domain.MessageRecord")).
		Run(func(args mock.Arguments) { rewritten = args.Get(1).([]domain.MessageRecord) }).
		Return(nil)

	count, err := m.MigrateReferences(context.Background(), "A", "B")

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, rewritten, 2)
	assert.Equal(t, []string{"B", "C"}, rewritten[0].Participants)
	assert.Equal(t, "B", rewritten[0].FromUID)
	assert.Equal(t, "C", rewritten[0].ToUID)
	assert.Equal(t, "B_C", rewritten[0].ConversationID)
	assert.Equal(t, []string{"C", "B"}, rewritten[1].Participants)
	assert.Equal(t, "B", rewritten[1].ToUID)
	assert.Equal(t, "B_C", rewritten[1].ConversationID)
}

func TestMigrateReferences_PagesUntilCursorExhausted(t *testing.T) {
	m, mockRemote := setupMigratorTest(t)

	pageOne := make([]domain.MessageRecord, 0, migrationPageSize)
	for i := 0; i < migrationPageSize; i++ {
		pageOne = append(pageOne, domain.MessageRecord{
			ID: "m", Participants: []string{"A", "X"}, FromUID: "A", ToUID: "X",
		})
	}
	mockRemote.On("MessagesWithParticipant", mock.Anything, "A", migrationPageSize, "").
		Return(repository.MessagePage{Records: pageOne, NextCursor: "m"}, nil).Once()
	mockRemote.On("MessagesWithParticipant", mock.Anything, "A", migrationPageSize, "m").
		Return(repository.MessagePage{}, nil).Once()
	mockRemote.On("RewriteMessages", mock.Anything, mock.Anything).Return(nil)

	count, err := m.MigrateReferences(context.Background(), "A", "B")

	require.NoError(t, err)
	assert.Equal(t, migrationPageSize, count)
	mockRemote.AssertExpectations(t)
}

func TestMigrateReferences_ReturnsPartialCountOnError(t *testing.T) {
	m, mockRemote := setupMigratorTest(t)

	mockRemote.On("MessagesWithParticipant", mock.Anything, "A", migrationPageSize, "").
		Return(repository.MessagePage{}, errors.New("query failed"))

	count, err := m.MigrateReferences(context.Background(), "A", "B")

	assert.Error(t, err)
	assert.Zero(t, count)
}

func TestMigrateReferences_NoMatchesIsNoOp(t *testing.T) {
	m, mockRemote := setupMigratorTest(t)

	mockRemote.On("MessagesWithParticipant", mock.Anything, "A", migrationPageSize, "").
		Return(repository.MessagePage{}, nil)

	count, err := m.MigrateReferences(context.Background(), "A", "B")

	require.NoError(t, err)
	assert.Zero(t, count)
	mockRemote.AssertNotCalled(t, "RewriteMessages", mock.Anything, mock.Anything)
}
