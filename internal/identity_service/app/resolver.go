package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// profileConsolidator is what the resolver needs from ProfileConsolidator.
type profileConsolidator interface {
	Consolidate(ctx context.Context, principal domain.Principal, duplicate *domain.Profile) (*domain.Profile, error)
}

// IdentityResolver finds the one existing profile representing the current
// principal's real person: uid match first, then local-cache fast path, then
// contact-attribute match. A contact match is a genuine cross-identity
// duplicate, so the resolver consolidates it before returning; the caller
// always observes a profile already addressed by the current principal id.
//
// Resolution must never block sign-in: every failure degrades to "none", and
// every gateway call carries its own bounded timeout so a hung store cannot
// stall the caller.
type IdentityResolver struct {
	remote       repository.RemoteStore
	cache        repository.LocalCache
	consolidator profileConsolidator
	logger       *slog.Logger

	lookupTimeout time.Duration

	// Contact lookups get one retry after a fixed delay; they are the lookups
	// most critical to avoiding duplicate-profile creation.
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration)
}

// NewIdentityResolver creates an IdentityResolver.
func NewIdentityResolver(
	remote repository.RemoteStore,
	cache repository.LocalCache,
	consolidator profileConsolidator,
	lookupTimeout time.Duration,
	retryDelay time.Duration,
	logger *slog.Logger,
) *IdentityResolver {
	return &IdentityResolver{
		remote:        remote,
		cache:         cache,
		consolidator:  consolidator,
		logger:        logger.With("service", "identity_resolver"),
		lookupTimeout: lookupTimeout,
		retryDelay:    retryDelay,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Resolve runs the resolution algorithm for the given principal,
// short-circuiting on the first hit.
func (r *IdentityResolver) Resolve(ctx context.Context, principal domain.Principal) domain.ResolveResult {
	// 1. Already consolidated: a profile keyed by the principal id.
	for _, variant := range []domain.Variant{domain.VariantVendor, domain.VariantRegularUser} {
		profile, err := r.getProfile(ctx, variant, principal.ID)
		if err == nil {
			resolveOutcomeCounter.WithLabelValues(string(domain.ResolvedExisting)).Inc()
			return domain.ResolveResult{Profile: profile, Source: domain.ResolvedExisting}
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "Profile lookup by uid failed", "variant", variant, "uid", principal.ID, "error", err)
		}
	}

	// 2. Same-device fast path: a complete cached RegularUser profile lets the
	// caller proceed without a network round trip, but only when the cached
	// auth record says this node last authenticated the same principal.
	if cached := r.cachedOwnProfile(ctx, principal); cached != nil {
		resolveOutcomeCounter.WithLabelValues(string(domain.ResolvedFromCache)).Inc()
		return domain.ResolveResult{Profile: cached, Source: domain.ResolvedFromCache}
	}

	// 3/4. Contact-attribute match against the vendor collection.
	duplicate := r.findDuplicateByContact(ctx, principal)
	if duplicate == nil {
		resolveOutcomeCounter.WithLabelValues(string(domain.ResolvedNone)).Inc()
		return domain.ResolveResult{Source: domain.ResolvedNone}
	}

	survivor, err := r.consolidator.Consolidate(ctx, principal, duplicate)
	if err != nil {
		// Survivor-write failure aborts the merge; the caller falls back to
		// treating the user as profile-less rather than seeing a half-merged
		// state.
		r.logger.ErrorContext(ctx, "Consolidation failed, degrading to no profile",
			"uid", principal.ID, "duplicate_uid", duplicate.UID, "error", err)
		resolveOutcomeCounter.WithLabelValues(string(domain.ResolvedNone)).Inc()
		return domain.ResolveResult{Source: domain.ResolvedNone}
	}

	resolveOutcomeCounter.WithLabelValues(string(domain.ResolvedConsolidated)).Inc()
	return domain.ResolveResult{Profile: survivor, Source: domain.ResolvedConsolidated}
}

func (r *IdentityResolver) getProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return r.remote.GetProfile(opCtx, variant, uid)
}

// cachedOwnProfile returns the locally cached profile when the cache belongs
// to the current principal and carries enough data to be usable. A cache left
// behind by a different principal on the same node is ignored.
func (r *IdentityResolver) cachedOwnProfile(ctx context.Context, principal domain.Principal) *domain.Profile {
	opCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	entry, err := r.cache.GetAuthCache(opCtx)
	if err != nil || entry.UID != principal.ID {
		return nil
	}
	cached, err := r.cache.GetProfile(opCtx, domain.VariantRegularUser, principal.ID)
	if err != nil || !cached.IsComplete() {
		return nil
	}
	return cached
}

// findDuplicateByContact queries vendors by phone, then by email, retrying
// each transient failure once after a fixed delay.
func (r *IdentityResolver) findDuplicateByContact(ctx context.Context, principal domain.Principal) *domain.Profile {
	if !principal.HasContact() {
		return nil
	}

	type lookup struct {
		field repository.ContactField
		value string
	}
	lookups := []lookup{}
	if principal.PhoneNumber != "" {
		lookups = append(lookups, lookup{repository.ContactPhone, principal.PhoneNumber})
	}
	if principal.Email != "" {
		lookups = append(lookups, lookup{repository.ContactEmail, principal.Email})
	}

	for _, l := range lookups {
		profile, err := r.findVendorByContact(ctx, l.field, l.value)
		if errors.Is(err, domain.ErrTransientStore) {
			r.logger.WarnContext(ctx, "Contact lookup hit transient error, retrying once",
				"field", l.field, "error", err)
			r.sleep(ctx, r.retryDelay)
			profile, err = r.findVendorByContact(ctx, l.field, l.value)
		}
		if err == nil {
			return profile
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "Contact lookup failed, degrading to not found",
				"field", l.field, "error", err)
		}
	}
	return nil
}

func (r *IdentityResolver) findVendorByContact(ctx context.Context, field repository.ContactField, value string) (*domain.Profile, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()
	return r.remote.FindVendorByContact(opCtx, field, value)
}
