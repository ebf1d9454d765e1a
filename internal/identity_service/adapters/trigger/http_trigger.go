// Package trigger implements the client for the server-side account-erase
// function.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

// eraseRequest is the trigger's request contract.
type eraseRequest struct {
	UID       string `json:"uid"`
	Timestamp string `json:"timestamp"` // ISO-8601
}

// eraseResponse is the trigger's structured result.
type eraseResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HTTPTrigger invokes the serverless erase function over HTTP, authenticating
// each call with a short-lived HS256 token. A timeout, transport error, or
// non-success response are all the same to the caller: delegate failed.
type HTTPTrigger struct {
	logger        *slog.Logger
	httpClient    *http.Client
	url           string
	signingSecret []byte
}

// NewHTTPTrigger creates an HTTPTrigger. httpClient may be nil.
func NewHTTPTrigger(logger *slog.Logger, url, signingSecret string, httpClient *http.Client) *HTTPTrigger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTrigger{
		logger:        logger.With("adapter", "http_trigger"),
		httpClient:    httpClient,
		url:           url,
		signingSecret: []byte(signingSecret),
	}
}

// Delegate asks the backend to erase the uid's footprint. Any failure wraps
// domain.ErrDelegateFailed.
func (t *HTTPTrigger) Delegate(ctx context.Context, uid string, requestedAt time.Time) error {
	if t.url == "" {
		return fmt.Errorf("%w: no trigger endpoint configured", domain.ErrDelegateFailed)
	}
	reqBody := eraseRequest{
		UID:       uid,
		Timestamp: requestedAt.UTC().Format(time.RFC3339),
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrDelegateFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrDelegateFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	token, err := t.signToken(uid, requestedAt)
	if err != nil {
		return fmt.Errorf("%w: sign token: %v", domain.ErrDelegateFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		t.logger.WarnContext(ctx, "Trigger request failed", "uid", uid, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrDelegateFailed, err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrDelegateFailed, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		t.logger.WarnContext(ctx, "Trigger returned non-OK status", "uid", uid, "status", httpResp.StatusCode)
		return fmt.Errorf("%w: status %d", domain.ErrDelegateFailed, httpResp.StatusCode)
	}

	var resp eraseResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrDelegateFailed, err)
	}
	if !resp.Success {
		t.logger.WarnContext(ctx, "Trigger reported failure", "uid", uid, "trigger_error", resp.Error)
		return fmt.Errorf("%w: %s", domain.ErrDelegateFailed, resp.Error)
	}
	return nil
}

// signToken issues the short-lived bearer token the erase function expects.
func (t *HTTPTrigger) signToken(uid string, requestedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": uid,
		"iat": requestedAt.Unix(),
		"exp": requestedAt.Add(2 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingSecret)
}
