package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// referenceMigrator is what the consolidator needs from ReferenceMigrator.
type referenceMigrator interface {
	MigrateReferences(ctx context.Context, oldUID, newUID string) (int, error)
}

// ProfileConsolidator merges a duplicate profile discovered by contact match
// into a survivor record keyed by the current principal id, then retires the
// duplicate. The survivor write always precedes destructive steps.
type ProfileConsolidator struct {
	remote   repository.RemoteStore
	migrator referenceMigrator
	events   repository.EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileConsolidator creates a ProfileConsolidator. events may be nil.
func NewProfileConsolidator(
	remote repository.RemoteStore,
	migrator referenceMigrator,
	events repository.EventPublisher,
	logger *slog.Logger,
) *ProfileConsolidator {
	return &ProfileConsolidator{
		remote:   remote,
		migrator: migrator,
		events:   events,
		logger:   logger.With("service", "profile_consolidator"),
		now:      time.Now,
	}
}

// Consolidate merges duplicate into a survivor keyed by principal.ID, writes
// the survivor, migrates message references, and deletes the duplicate.
//
// Only the survivor write is fatal: a half-merged state with no survivor
// record would be worse than no merge at all, so that failure wraps
// domain.ErrConsolidationFailed and nothing destructive has happened yet.
// A failed duplicate delete leaves an orphaned, unreferenced record, which is
// tolerated in preference to two live reachable profiles.
func (c *ProfileConsolidator) Consolidate(ctx context.Context, principal domain.Principal, duplicate *domain.Profile) (*domain.Profile, error) {
	seed := &domain.Profile{
		UID:         principal.ID,
		Variant:     duplicate.Variant,
		DisplayName: principal.DisplayName,
	}
	survivor := mergeProfiles(seed, duplicate, principal, c.now())

	if err := c.remote.PutProfile(ctx, survivor); err != nil {
		consolidationCounter.WithLabelValues("survivor_write_failed").Inc()
		c.logger.ErrorContext(ctx, "Survivor write failed, aborting consolidation",
			"survivor_uid", survivor.UID, "duplicate_uid", duplicate.UID, "error", err)
		return nil, fmt.Errorf("%w: survivor write for %s: %v", domain.ErrConsolidationFailed, survivor.UID, err)
	}

	migrated, err := c.migrator.MigrateReferences(ctx, duplicate.UID, survivor.UID)
	if err != nil {
		// Old threads failing to relink must not block the consolidated
		// identity; log and keep going.
		c.logger.WarnContext(ctx, "Reference migration incomplete",
			"old_uid", duplicate.UID, "new_uid", survivor.UID, "migrated", migrated, "error", err)
	}

	if err := c.remote.DeleteProfile(ctx, duplicate.Variant, duplicate.UID); err != nil {
		c.logger.WarnContext(ctx, "Failed to delete duplicate profile, leaving orphan",
			"duplicate_uid", duplicate.UID, "error", err)
	}

	consolidationCounter.WithLabelValues("success").Inc()
	c.publishConsolidated(ctx, survivor, duplicate, migrated)
	return survivor, nil
}

func (c *ProfileConsolidator) publishConsolidated(ctx context.Context, survivor, duplicate *domain.Profile, migrated int) {
	if c.events == nil {
		return
	}
	event := domain.IdentityConsolidatedEvent{
		EventID:      uuid.NewString(),
		SurvivorUID:  survivor.UID,
		RetiredUID:   duplicate.UID,
		Variant:      survivor.Variant,
		MigratedRefs: migrated,
		OccurredAt:   c.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to marshal consolidation event", "error", err)
		return
	}
	if err := c.events.Publish(ctx, domain.SubjectIdentityConsolidated, payload); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish consolidation event", "error", err)
	}
}

// mergeProfiles applies the deterministic field-precedence rules: scalar text
// fields keep the duplicate's value only where the survivor's is empty,
// avatar state prefers the survivor's and is carried wholesale so the
// one-state invariant holds, and contact fields prefer the principal's live
// values over either stored record.
func mergeProfiles(survivor, duplicate *domain.Profile, principal domain.Principal, now time.Time) *domain.Profile {
	merged := *survivor

	merged.DisplayName = firstNonEmpty(survivor.DisplayName, duplicate.DisplayName)
	merged.StallName = firstNonEmpty(survivor.StallName, duplicate.StallName)
	merged.MarketCity = firstNonEmpty(survivor.MarketCity, duplicate.MarketCity)

	merged.ContactPhone = firstNonEmpty(principal.PhoneNumber, survivor.ContactPhone, duplicate.ContactPhone)
	merged.ContactEmail = firstNonEmpty(principal.Email, survivor.ContactEmail, duplicate.ContactEmail)

	switch {
	case survivor.AvatarRemoteRef != "":
		merged.SetRemoteAvatar(survivor.AvatarRemoteRef)
	case survivor.AvatarPendingLocalRef != "":
		merged.SetPendingAvatar(survivor.AvatarPendingLocalRef)
	case duplicate.AvatarRemoteRef != "":
		merged.SetRemoteAvatar(duplicate.AvatarRemoteRef)
	case duplicate.AvatarPendingLocalRef != "":
		merged.SetPendingAvatar(duplicate.AvatarPendingLocalRef)
	}

	// A just-merged profile must be pushed before it can be trusted.
	merged.LastUpdated = now
	merged.NeedsSync = true
	return &merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
