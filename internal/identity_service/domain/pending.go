package domain

import "time"

// PendingUpload is a locally queued media item that has not reached the blob
// store yet. Owned by the local cache only.
type PendingUpload struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	LocalPath string    `json:"local_path"`
	Kind      string    `json:"kind"` // e.g. "avatar", "broadcast_image"
	CreatedAt time.Time `json:"created_at"`
}

// AuthCacheEntry remembers the last authenticated principal's basic
// attributes for fast offline checks. A single row, replaced on each
// successful resolve.
type AuthCacheEntry struct {
	UID         string    `json:"uid"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	AuthTime    time.Time `json:"auth_time"`
}
