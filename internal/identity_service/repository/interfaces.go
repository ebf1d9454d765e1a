package repository

import (
	"context"
	"time"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

// ContactField selects which stored contact attribute a duplicate lookup
// matches against.
type ContactField string

const (
	ContactPhone ContactField = "contactPhone"
	ContactEmail ContactField = "contactEmail"
)

// MessagePage is one page of message records plus the cursor for the next
// page. A zero NextCursor means the scan is complete.
type MessagePage struct {
	Records    []domain.MessageRecord
	NextCursor string
}

// RemoteStore is the typed gateway to the remote document database. There is
// no cross-collection transaction primitive behind any of these calls.
type RemoteStore interface {
	// GetProfile returns the profile keyed by uid in the given variant
	// collection, or domain.ErrNotFound.
	GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error)
	// PutProfile writes the profile under profile.UID in its variant
	// collection, replacing any existing record.
	PutProfile(ctx context.Context, profile *domain.Profile) error
	// DeleteProfile removes the profile record. Absence is not an error.
	DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error
	// FindVendorByContact queries the vendor collection for one record whose
	// contact field matches value, or domain.ErrNotFound.
	FindVendorByContact(ctx context.Context, field ContactField, value string) (*domain.Profile, error)

	// MessagesWithParticipant pages through messages whose participant set
	// contains uid.
	MessagesWithParticipant(ctx context.Context, uid string, pageSize int, cursor string) (MessagePage, error)
	// RewriteMessages applies the given records as one batched write.
	RewriteMessages(ctx context.Context, records []domain.MessageRecord) error
	// PutMessage writes a single message record.
	PutMessage(ctx context.Context, record *domain.MessageRecord) error
	// DeleteMessagesWithParticipant removes every message referencing uid and
	// returns how many were deleted.
	DeleteMessagesWithParticipant(ctx context.Context, uid string) (int, error)

	// DeleteAuthoredBroadcasts removes the uid's broadcasts and returns any
	// media refs the deleted documents pointed at, for blob cleanup.
	DeleteAuthoredBroadcasts(ctx context.Context, uid string) ([]string, error)
	// DeleteFollowEdges removes follow edges in both directions: the uid's own
	// followers sub-collection and the uid's entries under every other
	// vendor's followers sub-collection.
	DeleteFollowEdges(ctx context.Context, uid string) (int, error)
	// DeleteFeedback removes the uid's personalization/feedback records.
	DeleteFeedback(ctx context.Context, uid string) (int, error)
	// DeleteKnowledgeEntries removes knowledge-base entries owned by uid.
	DeleteKnowledgeEntries(ctx context.Context, uid string) (int, error)
}

// LocalCache is the typed gateway to the node-local cache. Implementations
// serialize access internally; callers never coordinate.
type LocalCache interface {
	GetProfile(ctx context.Context, variant domain.Variant, uid string) (*domain.Profile, error)
	PutProfile(ctx context.Context, profile *domain.Profile) error
	DeleteProfile(ctx context.Context, variant domain.Variant, uid string) error

	PendingUploads(ctx context.Context, uid string) ([]domain.PendingUpload, error)
	PutPendingUpload(ctx context.Context, item *domain.PendingUpload) error
	DeletePendingUploads(ctx context.Context, uid string) error

	GetAuthCache(ctx context.Context) (*domain.AuthCacheEntry, error)
	PutAuthCache(ctx context.Context, entry *domain.AuthCacheEntry) error
	DeleteAuthCache(ctx context.Context) error
}

// BlobListing is one level of a prefix walk.
type BlobListing struct {
	Objects     []string
	SubPrefixes []string
}

// BlobStore is the gateway to the blob store's prefix-based namespace.
type BlobStore interface {
	ListChildren(ctx context.Context, prefix string) (BlobListing, error)
	DeleteObject(ctx context.Context, ref string) error
}

// IdentityProvider is the gateway to the external identity provider.
type IdentityProvider interface {
	// Principal verifies a session token and returns the authenticated
	// principal, including contact attributes and auth time.
	Principal(ctx context.Context, sessionToken string) (*domain.Principal, error)
	// DeletePrincipal irreversibly deletes the principal. Returns
	// domain.ErrRequiresRecentAuth when the session's auth time is too old.
	DeletePrincipal(ctx context.Context, principal domain.Principal) error
}

// DeletionTrigger invokes the server-side erase function. Any non-success
// response, transport error, or timeout surfaces as domain.ErrDelegateFailed.
type DeletionTrigger interface {
	Delegate(ctx context.Context, uid string, requestedAt time.Time) error
}

// EventPublisher publishes identity lifecycle events for other subsystems.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}
