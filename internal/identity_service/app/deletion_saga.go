package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// Per-collection cleanup step names recorded inside the fallback phase.
const (
	stepCleanupBroadcasts  = "cleanup_broadcasts"
	stepCleanupMessages    = "cleanup_messages"
	stepCleanupFollowEdges = "cleanup_follow_edges"
	stepCleanupFeedback    = "cleanup_feedback"
	stepCleanupKnowledge   = "cleanup_knowledge"
)

const blobDeleteConcurrency = 4

// SagaTimeouts bounds each gateway call category so a hung backend cannot
// block a saga run indefinitely.
type SagaTimeouts struct {
	Trigger     time.Duration
	Lookup      time.Duration
	PrincipalOp time.Duration
}

// DeletionSaga orchestrates full account erasure across every store holding a
// footprint of the user's data. There is no cross-store transaction: each
// step's failure is handled independently, recorded in the outcome, and the
// saga optimizes for maximum partial cleanup over all-or-nothing correctness.
//
// Principal deletion is strictly last and is the only step whose failure is
// returned as an error.
type DeletionSaga struct {
	cache    repository.LocalCache
	trigger  repository.DeletionTrigger
	remote   repository.RemoteStore
	blobs    repository.BlobStore
	idp      repository.IdentityProvider
	events   repository.EventPublisher
	logger   *slog.Logger
	timeouts SagaTimeouts
	now      func() time.Time
}

// NewDeletionSaga creates a DeletionSaga. events may be nil.
func NewDeletionSaga(
	cache repository.LocalCache,
	trigger repository.DeletionTrigger,
	remote repository.RemoteStore,
	blobs repository.BlobStore,
	idp repository.IdentityProvider,
	events repository.EventPublisher,
	timeouts SagaTimeouts,
	logger *slog.Logger,
) *DeletionSaga {
	return &DeletionSaga{
		cache:    cache,
		trigger:  trigger,
		remote:   remote,
		blobs:    blobs,
		idp:      idp,
		events:   events,
		logger:   logger.With("service", "deletion_saga"),
		timeouts: timeouts,
		now:      time.Now,
	}
}

// DeleteAccount runs the saga to its terminal state for the authenticated
// principal. The returned outcome is always populated, even when err is
// non-nil; once started there is no mid-saga cancellation.
func (s *DeletionSaga) DeleteAccount(ctx context.Context, principal domain.Principal) (*domain.DeletionOutcome, error) {
	start := s.now()
	uid := principal.ID
	outcome := &domain.DeletionOutcome{UID: uid}
	s.logger.InfoContext(ctx, "Starting account deletion saga", "uid", uid)

	// 1. LocalWipe: failure is reported but remote cleanup still proceeds.
	if err := s.localWipe(ctx, uid); err != nil {
		s.recordFailed(ctx, outcome, domain.StepLocalWipe, err)
	} else {
		s.recordSucceeded(outcome, domain.StepLocalWipe)
	}

	// 2. DelegateToBackend: on success the backend owns collection and blob
	// cleanup remotely; any failure switches strategy to the client-driven
	// fallback rather than retrying the call.
	delegated := s.delegate(ctx, uid)
	if delegated {
		s.recordSucceeded(outcome, domain.StepDelegateToBackend)
		outcome.Skipped(domain.StepCollectionsCleanup, "delegated to backend")
		outcome.Skipped(domain.StepBlobErasure, "delegated to backend")
	} else {
		s.recordFailed(ctx, outcome, domain.StepDelegateToBackend, domain.ErrDelegateFailed)

		// 3. ManualCollectionCleanup: each collection's failure is caught
		// independently; no early abort.
		mediaRefs := s.collectionsCleanup(ctx, uid, outcome)

		// 4. BlobFolderErasure: both variant prefixes plus media refs
		// discovered while deleting authored content.
		if err := s.blobErasure(ctx, uid, mediaRefs); err != nil {
			s.recordFailed(ctx, outcome, domain.StepBlobErasure, err)
		} else {
			s.recordSucceeded(outcome, domain.StepBlobErasure)
		}
	}

	// 5. ProfileRecordDeletion: escalated on failure. The profile record is
	// authoritative for "does this user still exist"; leaving it after a
	// "successful" deletion would be visible to every other user. Principal
	// deletion is skipped so the user can re-authenticate and retry.
	if err := s.deleteProfileRecords(ctx, uid); err != nil {
		s.recordFailed(ctx, outcome, domain.StepProfileDeletion, err)
		outcome.Skipped(domain.StepPrincipalDeletion, "profile deletion failed")
		s.finish(ctx, outcome, start)
		return outcome, fmt.Errorf("profile record deletion for %s: %w", uid, err)
	}
	s.recordSucceeded(outcome, domain.StepProfileDeletion)

	// 6. PrincipalDeletion: terminal and irreversible, therefore last.
	opCtx, cancel := context.WithTimeout(ctx, s.timeouts.PrincipalOp)
	defer cancel()
	if err := s.idp.DeletePrincipal(opCtx, principal); err != nil {
		s.recordFailed(ctx, outcome, domain.StepPrincipalDeletion, err)
		s.finish(ctx, outcome, start)
		if errors.Is(err, domain.ErrRequiresRecentAuth) {
			// All other steps are complete and are not re-run; only the
			// principal remains, pending re-authentication.
			return outcome, domain.ErrRequiresRecentAuth
		}
		return outcome, fmt.Errorf("principal deletion for %s: %w", uid, err)
	}
	s.recordSucceeded(outcome, domain.StepPrincipalDeletion)

	s.finish(ctx, outcome, start)
	s.logger.InfoContext(ctx, "Account deletion saga finished", "uid", uid, "fully_clean", outcome.FullyClean())
	return outcome, nil
}

func (s *DeletionSaga) localWipe(ctx context.Context, uid string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
	defer cancel()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(s.cache.DeleteProfile(opCtx, domain.VariantVendor, uid))
	keep(s.cache.DeleteProfile(opCtx, domain.VariantRegularUser, uid))
	keep(s.cache.DeletePendingUploads(opCtx, uid))
	keep(s.cache.DeleteAuthCache(opCtx))
	return firstErr
}

func (s *DeletionSaga) delegate(ctx context.Context, uid string) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Trigger)
	defer cancel()
	if err := s.trigger.Delegate(opCtx, uid, s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "Backend deletion delegate failed, falling back to client-driven cleanup",
			"uid", uid, "error", err)
		return false
	}
	return true
}

// collectionsCleanup deletes the uid's footprint collection by collection and
// returns any media refs discovered for the blob step.
func (s *DeletionSaga) collectionsCleanup(ctx context.Context, uid string, outcome *domain.DeletionOutcome) []string {
	var mediaRefs []string

	cleanups := []struct {
		name string
		run  func(context.Context) error
	}{
		{stepCleanupBroadcasts, func(ctx context.Context) error {
			refs, err := s.remote.DeleteAuthoredBroadcasts(ctx, uid)
			mediaRefs = append(mediaRefs, refs...)
			return err
		}},
		{stepCleanupMessages, func(ctx context.Context) error {
			_, err := s.remote.DeleteMessagesWithParticipant(ctx, uid)
			return err
		}},
		{stepCleanupFollowEdges, func(ctx context.Context) error {
			_, err := s.remote.DeleteFollowEdges(ctx, uid)
			return err
		}},
		{stepCleanupFeedback, func(ctx context.Context) error {
			_, err := s.remote.DeleteFeedback(ctx, uid)
			return err
		}},
		{stepCleanupKnowledge, func(ctx context.Context) error {
			_, err := s.remote.DeleteKnowledgeEntries(ctx, uid)
			return err
		}},
	}

	failed := 0
	for _, c := range cleanups {
		opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
		err := c.run(opCtx)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			failed++
			s.recordFailed(ctx, outcome, c.name, err)
			continue
		}
		s.recordSucceeded(outcome, c.name)
	}

	if failed > 0 {
		outcome.Failed(domain.StepCollectionsCleanup, fmt.Sprintf("%d of %d collections failed", failed, len(cleanups)))
	} else {
		outcome.Succeeded(domain.StepCollectionsCleanup)
	}
	return mediaRefs
}

// blobErasure walks both variant prefixes to completion plus the directly
// referenced media objects. Per-object errors are logged and skipped; the
// returned error only reflects listing failures.
func (s *DeletionSaga) blobErasure(ctx context.Context, uid string, mediaRefs []string) error {
	for _, ref := range mediaRefs {
		if err := s.deleteObject(ctx, ref); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to delete referenced media object", "ref", ref, "error", err)
		}
	}

	var firstErr error
	for _, prefix := range []string{
		fmt.Sprintf("%s/%s/", domain.VariantVendor, uid),
		fmt.Sprintf("%s/%s/", domain.VariantRegularUser, uid),
	} {
		if err := s.erasePrefix(ctx, prefix); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *DeletionSaga) erasePrefix(ctx context.Context, prefix string) error {
	listing, err := s.listChildren(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list blob prefix %q: %w", prefix, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobDeleteConcurrency)
	for _, obj := range listing.Objects {
		obj := obj
		g.Go(func() error {
			if err := s.deleteObject(gctx, obj); err != nil && !errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(gctx, "Failed to delete blob object, skipping", "object", obj, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Walk nested prefixes to completion.
	var firstErr error
	for _, sub := range listing.SubPrefixes {
		if err := s.erasePrefix(ctx, sub); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *DeletionSaga) listChildren(ctx context.Context, prefix string) (repository.BlobListing, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
	defer cancel()
	return s.blobs.ListChildren(opCtx, prefix)
}

func (s *DeletionSaga) deleteObject(ctx context.Context, ref string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
	defer cancel()
	return s.blobs.DeleteObject(opCtx, ref)
}

func (s *DeletionSaga) deleteProfileRecords(ctx context.Context, uid string) error {
	for _, variant := range []domain.Variant{domain.VariantVendor, domain.VariantRegularUser} {
		opCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
		err := s.remote.DeleteProfile(opCtx, variant, uid)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *DeletionSaga) recordSucceeded(outcome *domain.DeletionOutcome, step string) {
	outcome.Succeeded(step)
	sagaStepCounter.WithLabelValues(step, string(domain.StepSucceeded)).Inc()
}

func (s *DeletionSaga) recordFailed(ctx context.Context, outcome *domain.DeletionOutcome, step string, err error) {
	outcome.Failed(step, err.Error())
	sagaStepCounter.WithLabelValues(step, string(domain.StepFailed)).Inc()
	s.logger.WarnContext(ctx, "Deletion saga step failed", "step", step, "uid", outcome.UID, "error", err)
}

func (s *DeletionSaga) finish(ctx context.Context, outcome *domain.DeletionOutcome, start time.Time) {
	sagaDurationHist.Observe(s.now().Sub(start).Seconds())
	if s.events == nil {
		return
	}
	event := domain.AccountDeletedEvent{
		EventID:    uuid.NewString(),
		UID:        outcome.UID,
		Steps:      outcome.Steps,
		FullyClean: outcome.FullyClean(),
		OccurredAt: s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal account-deleted event", "error", err)
		return
	}
	if err := s.events.Publish(ctx, domain.SubjectAccountDeleted, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish account-deleted event", "error", err)
	}
}
