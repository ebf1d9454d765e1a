package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

const migrationPageSize = 100

// ReferenceMigrator rewrites foreign-key references (message participant
// sets, sender/recipient ids, derived conversation ids) from a retired uid to
// the surviving uid. Best-effort: a failed migration never blocks the
// consolidation that requested it.
type ReferenceMigrator struct {
	remote repository.RemoteStore
	logger *slog.Logger
}

// NewReferenceMigrator creates a ReferenceMigrator.
func NewReferenceMigrator(remote repository.RemoteStore, logger *slog.Logger) *ReferenceMigrator {
	return &ReferenceMigrator{
		remote: remote,
		logger: logger.With("service", "reference_migrator"),
	}
}

// MigrateReferences rewrites every message referencing oldUID to reference
// newUID, one batched write per discovered page. Returns the number of
// records updated; on error the count covers the pages already applied.
//
// If two previously distinct conversations converge to the same conversation
// id after migration, no de-duplication is performed.
func (m *ReferenceMigrator) MigrateReferences(ctx context.Context, oldUID, newUID string) (int, error) {
	migrated := 0
	cursor := ""

	for {
		page, err := m.remote.MessagesWithParticipant(ctx, oldUID, migrationPageSize, cursor)
		if err != nil {
			return migrated, fmt.Errorf("failed to page messages for %s: %w", oldUID, err)
		}
		if len(page.Records) == 0 {
			break
		}

		rewritten := make([]domain.MessageRecord, 0, len(page.Records))
		for i := range page.Records {
			rec := page.Records[i]
			if rec.RewriteParticipant(oldUID, newUID) {
				rewritten = append(rewritten, rec)
			}
		}

		if len(rewritten) > 0 {
			if err := m.remote.RewriteMessages(ctx, rewritten); err != nil {
				return migrated, fmt.Errorf("failed to rewrite message batch: %w", err)
			}
			migrated += len(rewritten)
			migratedReferencesCounter.Add(float64(len(rewritten)))
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	m.logger.InfoContext(ctx, "Reference migration finished", "old_uid", oldUID, "new_uid", newUID, "migrated", migrated)
	return migrated, nil
}
