package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/marketday/identity-service/internal/identity_service/domain"
	"github.com/marketday/identity-service/internal/identity_service/repository"
)

// identityResolver is what the handler needs from app.IdentityResolver.
type identityResolver interface {
	Resolve(ctx context.Context, principal domain.Principal) domain.ResolveResult
}

// deletionSaga is what the handler needs from app.DeletionSaga.
type deletionSaga interface {
	DeleteAccount(ctx context.Context, principal domain.Principal) (*domain.DeletionOutcome, error)
}

// IdentityHandler serves the identity lifecycle HTTP surface.
type IdentityHandler struct {
	resolver identityResolver
	saga     deletionSaga
	remote   repository.RemoteStore
	cache    repository.LocalCache
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewIdentityHandler creates an IdentityHandler.
func NewIdentityHandler(
	resolver identityResolver,
	saga deletionSaga,
	remote repository.RemoteStore,
	cache repository.LocalCache,
	logger *slog.Logger,
	validate *validator.Validate,
) *IdentityHandler {
	return &IdentityHandler{
		resolver: resolver,
		saga:     saga,
		remote:   remote,
		cache:    cache,
		logger:   logger.With("handler", "identity"),
		validate: validate,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the authenticated identity routes.
func (h *IdentityHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/session/resolve", h.ResolveSession)
	r.Put("/v1/profile", h.UpsertProfile)
	r.Post("/v1/messages", h.SendMessage)
	r.Get("/v1/uploads/pending", h.PendingUploads)
	r.Delete("/v1/account", h.DeleteAccount)
}

// ResolveSession runs identity resolution for the authenticated principal.
// A "none" result is a normal response telling the client to prompt profile
// creation, never an error.
func (h *IdentityHandler) ResolveSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	result := h.resolver.Resolve(r.Context(), principal)
	h.refreshLocalCache(r.Context(), principal, result)

	respondWithJSON(w, http.StatusOK, ResolveResponse{
		Source:          string(result.Source),
		Profile:         result.Profile,
		ProfileRequired: !result.Found(),
	})
}

// refreshLocalCache keeps the same-device fast path and offline auth checks
// warm. The auth record is written for every authenticated resolve, including
// a profile-less one. Best-effort: cache failures never affect the response.
func (h *IdentityHandler) refreshLocalCache(ctx context.Context, principal domain.Principal, result domain.ResolveResult) {
	entry := &domain.AuthCacheEntry{
		UID:         principal.ID,
		PhoneNumber: principal.PhoneNumber,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		AuthTime:    principal.AuthTime,
	}
	if err := h.cache.PutAuthCache(ctx, entry); err != nil {
		h.logger.WarnContext(ctx, "Failed to refresh auth cache", "uid", principal.ID, "error", err)
	}
	if !result.Found() || result.Source == domain.ResolvedFromCache {
		return
	}
	if err := h.cache.PutProfile(ctx, result.Profile); err != nil {
		h.logger.WarnContext(ctx, "Failed to cache resolved profile", "uid", principal.ID, "error", err)
	}
}

// UpsertProfile creates or replaces the authenticated principal's profile.
func (h *IdentityHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile := &domain.Profile{
		UID:          principal.ID,
		Variant:      req.VariantValue(),
		DisplayName:  req.DisplayName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		StallName:    req.StallName,
		MarketCity:   req.MarketCity,
		LastUpdated:  h.now(),
	}
	switch {
	case req.AvatarRemoteRef != "":
		profile.SetRemoteAvatar(req.AvatarRemoteRef)
	case req.AvatarPendingLocalRef != "":
		profile.SetPendingAvatar(req.AvatarPendingLocalRef)
	}

	if err := h.remote.PutProfile(r.Context(), profile); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write profile", "uid", principal.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	if err := h.cache.PutProfile(r.Context(), profile); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to cache written profile", "uid", principal.ID, "error", err)
	}

	// A pending-local avatar means an upload is still owed; queue it so the
	// uploader can pick it up and the deletion saga can wipe it.
	if profile.AvatarState() == domain.AvatarPendingLocal {
		item := &domain.PendingUpload{
			ID:        uuid.NewString(),
			UID:       principal.ID,
			LocalPath: profile.AvatarPendingLocalRef,
			Kind:      "avatar",
			CreatedAt: h.now(),
		}
		if err := h.cache.PutPendingUpload(r.Context(), item); err != nil {
			h.logger.WarnContext(r.Context(), "Failed to queue pending avatar upload", "uid", principal.ID, "error", err)
		}
	}

	respondWithJSON(w, http.StatusOK, profile)
}

// PendingUploads lists the authenticated principal's queued local uploads.
func (h *IdentityHandler) PendingUploads(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	items, err := h.cache.PendingUploads(r.Context(), principal.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list pending uploads", "uid", principal.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list pending uploads")
		return
	}
	respondWithJSON(w, http.StatusOK, PendingUploadsResponse{Items: items})
}

// SendMessage stores a direct message from the authenticated principal.
func (h *IdentityHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ToUID == principal.ID {
		respondWithError(w, http.StatusBadRequest, "cannot message yourself")
		return
	}

	record := domain.NewMessageRecord(uuid.NewString(), principal.ID, req.ToUID, req.Body, h.now())
	if err := h.remote.PutMessage(r.Context(), &record); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write message", "from", principal.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	respondWithJSON(w, http.StatusCreated, record)
}

// DeleteAccount runs the deletion saga for the authenticated principal and
// reports the per-step outcome.
func (h *IdentityHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	outcome, err := h.saga.DeleteAccount(r.Context(), principal)
	if err != nil {
		if errors.Is(err, domain.ErrRequiresRecentAuth) {
			// Everything else is done; only the principal remains, pending
			// re-authentication.
			respondWithJSON(w, http.StatusConflict, DeleteAccountResponse{
				Outcome: outcome,
				Code:    "requires_recent_auth",
			})
			return
		}
		h.logger.ErrorContext(r.Context(), "Account deletion failed", "uid", principal.ID, "error", err)
		respondWithJSON(w, http.StatusInternalServerError, DeleteAccountResponse{
			Outcome: outcome,
			Code:    "deletion_failed",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, DeleteAccountResponse{Outcome: outcome})
}
