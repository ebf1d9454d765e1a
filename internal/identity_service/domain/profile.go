package domain

import "time"

// Variant identifies which collection holds a profile record.
type Variant string

const (
	VariantVendor      Variant = "vendors"
	VariantRegularUser Variant = "regularUsers"
)

// AvatarState describes which of the mutually exclusive avatar states a
// profile is in.
type AvatarState string

const (
	AvatarNone         AvatarState = "none"
	AvatarPendingLocal AvatarState = "pending_local"
	AvatarSyncedRemote AvatarState = "synced_remote"
)

// Profile is the application-level user record. Both variants share one Go
// struct; vendor-only fields stay empty on regular users. At rest the UID
// always equals the owning principal's id.
type Profile struct {
	UID         string `firestore:"uid" json:"uid"`
	DisplayName string `firestore:"displayName" json:"display_name"`

	ContactPhone string `firestore:"contactPhone,omitempty" json:"contact_phone,omitempty"`
	ContactEmail string `firestore:"contactEmail,omitempty" json:"contact_email,omitempty"`

	// Exactly one of {none, pending-local, synced-remote} avatar states holds;
	// the two refs are never both set.
	AvatarRemoteRef       string `firestore:"avatarRemoteRef,omitempty" json:"avatar_remote_ref,omitempty"`
	AvatarPendingLocalRef string `firestore:"avatarPendingLocalRef,omitempty" json:"avatar_pending_local_ref,omitempty"`

	// Vendor-only fields.
	StallName  string `firestore:"stallName,omitempty" json:"stall_name,omitempty"`
	MarketCity string `firestore:"marketCity,omitempty" json:"market_city,omitempty"`

	LastUpdated time.Time `firestore:"lastUpdated" json:"last_updated"`
	// NeedsSync marks a locally cached copy as ahead of the remote copy.
	NeedsSync bool `firestore:"needsSync" json:"needs_sync"`

	// Variant is derived from the collection the record was read from; it is
	// not stored as a document field.
	Variant Variant `firestore:"-" json:"variant"`
}

// AvatarState reports the profile's current avatar state.
func (p *Profile) AvatarState() AvatarState {
	switch {
	case p.AvatarRemoteRef != "":
		return AvatarSyncedRemote
	case p.AvatarPendingLocalRef != "":
		return AvatarPendingLocal
	default:
		return AvatarNone
	}
}

// SetRemoteAvatar records a synced remote avatar, clearing any pending ref so
// the exclusivity invariant holds.
func (p *Profile) SetRemoteAvatar(ref string) {
	p.AvatarRemoteRef = ref
	p.AvatarPendingLocalRef = ""
}

// SetPendingAvatar records a not-yet-uploaded local avatar.
func (p *Profile) SetPendingAvatar(ref string) {
	p.AvatarPendingLocalRef = ref
	p.AvatarRemoteRef = ""
}

// IsComplete reports whether the record carries enough data to act as a
// usable profile without a further remote read.
func (p *Profile) IsComplete() bool {
	return p.UID != "" && p.DisplayName != ""
}
