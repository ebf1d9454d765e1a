package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

// ResolveResponse is returned by POST /v1/session/resolve.
type ResolveResponse struct {
	Source  string          `json:"source"`
	Profile *domain.Profile `json:"profile,omitempty"`
	// ProfileRequired tells the client to prompt profile creation.
	ProfileRequired bool `json:"profile_required"`
}

// UpsertProfileRequest is the body of PUT /v1/profile.
type UpsertProfileRequest struct {
	Variant     string `json:"variant" validate:"required,oneof=vendor regular_user"`
	DisplayName string `json:"display_name" validate:"required,max=120"`

	ContactPhone string `json:"contact_phone,omitempty" validate:"omitempty,e164"`
	ContactEmail string `json:"contact_email,omitempty" validate:"omitempty,email"`

	// At most one avatar ref may be set; they are mutually exclusive states.
	AvatarRemoteRef       string `json:"avatar_remote_ref,omitempty" validate:"excluded_with=AvatarPendingLocalRef"`
	AvatarPendingLocalRef string `json:"avatar_pending_local_ref,omitempty"`

	StallName  string `json:"stall_name,omitempty" validate:"max=120"`
	MarketCity string `json:"market_city,omitempty" validate:"max=120"`
}

// Variant maps the wire value onto the collection variant.
func (r *UpsertProfileRequest) VariantValue() domain.Variant {
	if r.Variant == "vendor" {
		return domain.VariantVendor
	}
	return domain.VariantRegularUser
}

// SendMessageRequest is the body of POST /v1/messages.
type SendMessageRequest struct {
	ToUID string `json:"to_uid" validate:"required"`
	Body  string `json:"body" validate:"required,max=4000"`
}

// PendingUploadsResponse is returned by GET /v1/uploads/pending.
type PendingUploadsResponse struct {
	Items []domain.PendingUpload `json:"items"`
}

// DeleteAccountResponse wraps the saga outcome for the caller.
type DeleteAccountResponse struct {
	Outcome *domain.DeletionOutcome `json:"outcome"`
	// Code is set on partial failures, e.g. "requires_recent_auth".
	Code string `json:"code,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
