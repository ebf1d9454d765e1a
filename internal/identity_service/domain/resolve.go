package domain

// ResolveSource says how the resolver arrived at (or failed to find) a
// profile for the current principal.
type ResolveSource string

const (
	// ResolvedExisting: a profile already keyed by the principal id.
	ResolvedExisting ResolveSource = "existing"
	// ResolvedFromCache: same-device fast path, synthesized from the local
	// cache without a network round trip.
	ResolvedFromCache ResolveSource = "cache"
	// ResolvedConsolidated: a duplicate found by contact match was merged
	// into a survivor keyed by the principal id.
	ResolvedConsolidated ResolveSource = "consolidated"
	// ResolvedNone: no profile represents this person; the caller must
	// prompt profile creation.
	ResolvedNone ResolveSource = "none"
)

// ResolveResult is the outcome of identity resolution. Expected "not found"
// conditions are values here, not errors: resolution must never block
// sign-in.
type ResolveResult struct {
	Profile *Profile
	Source  ResolveSource
}

// Found reports whether a profile was resolved.
func (r ResolveResult) Found() bool { return r.Profile != nil }
