package domain

import "errors"

var (
	// ErrNotFound indicates that a requested record was not found. During
	// deletion it is treated as success (already absent).
	ErrNotFound = errors.New("record not found")
	// ErrTransientStore indicates a store failure worth a single retry.
	ErrTransientStore = errors.New("transient store error")
	// ErrRequiresRecentAuth indicates that the identity provider refused an
	// irreversible operation because the session is stale. Surfaced verbatim
	// to the caller so the user can re-authenticate.
	ErrRequiresRecentAuth = errors.New("operation requires recent authentication")
	// ErrConsolidationFailed indicates the survivor write failed, aborting the
	// whole consolidation. The caller treats the user as profile-less.
	ErrConsolidationFailed = errors.New("profile consolidation failed")
	// ErrDelegateFailed indicates the server-side erase trigger did not report
	// success; the caller falls back to client-driven cleanup.
	ErrDelegateFailed = errors.New("backend deletion delegate failed")
)
