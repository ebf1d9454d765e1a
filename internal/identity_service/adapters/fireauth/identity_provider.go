// Package fireauth implements the identity provider gateway on Firebase
// Authentication.
package fireauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

// Provider is a Firebase-backed repository.IdentityProvider.
type Provider struct {
	client *auth.Client
	logger *slog.Logger

	// recentAuthWindow bounds how stale a session may be before irreversible
	// operations demand re-authentication.
	recentAuthWindow time.Duration
	now              func() time.Time
}

// NewProvider wraps an existing Firebase auth client.
func NewProvider(client *auth.Client, recentAuthWindow time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		client:           client,
		logger:           logger.With("adapter", "fireauth"),
		recentAuthWindow: recentAuthWindow,
		now:              time.Now,
	}
}

// Principal verifies the session token and loads the principal's contact
// attributes. The token's auth_time claim becomes Principal.AuthTime.
func (p *Provider) Principal(ctx context.Context, sessionToken string) (*domain.Principal, error) {
	token, err := p.client.VerifyIDToken(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session token: %w", err)
	}

	record, err := p.client.GetUser(ctx, token.UID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: principal %s", domain.ErrNotFound, token.UID)
		}
		return nil, fmt.Errorf("failed to load principal %s: %w", token.UID, err)
	}

	principal := &domain.Principal{
		ID:          record.UID,
		PhoneNumber: record.PhoneNumber,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		AuthTime:    time.Unix(token.AuthTime, 0).UTC(),
	}
	return principal, nil
}

// DeletePrincipal irreversibly deletes the principal. A session older than
// the recent-auth window is refused with domain.ErrRequiresRecentAuth; an
// already-absent principal is treated as deleted.
func (p *Provider) DeletePrincipal(ctx context.Context, principal domain.Principal) error {
	if p.now().Sub(principal.AuthTime) > p.recentAuthWindow {
		return fmt.Errorf("%w: last authentication at %s", domain.ErrRequiresRecentAuth, principal.AuthTime.Format(time.RFC3339))
	}

	if err := p.client.DeleteUser(ctx, principal.ID); err != nil {
		if auth.IsUserNotFound(err) {
			p.logger.InfoContext(ctx, "Principal already absent", "uid", principal.ID)
			return nil
		}
		return fmt.Errorf("failed to delete principal %s: %w", principal.ID, err)
	}
	return nil
}
