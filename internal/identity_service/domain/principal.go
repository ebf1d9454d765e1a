package domain

import "time"

// Principal is the identity-provider-issued authenticated identity for the
// current session. The id can change across re-authentications for the same
// physical person, which is what makes duplicate profiles possible.
type Principal struct {
	ID          string
	PhoneNumber string
	Email       string
	DisplayName string

	// AuthTime is when the user last actively authenticated, taken from the
	// session token claims. Principal deletion requires this to be recent.
	AuthTime time.Time
}

// HasContact reports whether the principal carries at least one contact
// attribute usable for duplicate-profile matching.
func (p Principal) HasContact() bool {
	return p.PhoneNumber != "" || p.Email != ""
}
