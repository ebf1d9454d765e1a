package trigger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketday/identity-service/internal/identity_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDelegate_Success(t *testing.T) {
	requestedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		authHeader := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		require.True(t, ok)
		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		sub, err := token.Claims.GetSubject()
		require.NoError(t, err)
		assert.Equal(t, "u1", sub)

		bodyBytes, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req eraseRequest
		require.NoError(t, json.Unmarshal(bodyBytes, &req))
		assert.Equal(t, "u1", req.UID)
		assert.Equal(t, "2026-03-01T10:00:00Z", req.Timestamp)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eraseResponse{Success: true})
	}))
	defer server.Close()

	trig := NewHTTPTrigger(testLogger(), server.URL, "test-secret", server.Client())

	err := trig.Delegate(context.Background(), "u1", requestedAt)
	require.NoError(t, err)
}

func TestDelegate_NonSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(eraseResponse{Success: false, Error: "backend busy"})
	}))
	defer server.Close()

	trig := NewHTTPTrigger(testLogger(), server.URL, "s", server.Client())

	err := trig.Delegate(context.Background(), "u1", time.Now())
	assert.ErrorIs(t, err, domain.ErrDelegateFailed)
	assert.Contains(t, err.Error(), "backend busy")
}

func TestDelegate_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	trig := NewHTTPTrigger(testLogger(), server.URL, "s", server.Client())

	err := trig.Delegate(context.Background(), "u1", time.Now())
	assert.ErrorIs(t, err, domain.ErrDelegateFailed)
}

func TestDelegate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(eraseResponse{Success: true})
	}))
	defer server.Close()

	trig := NewHTTPTrigger(testLogger(), server.URL, "s", server.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := trig.Delegate(ctx, "u1", time.Now())
	assert.ErrorIs(t, err, domain.ErrDelegateFailed)
}
