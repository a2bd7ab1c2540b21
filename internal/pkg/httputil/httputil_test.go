package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticValidator struct {
	signer string
	err    error
}

func (v staticValidator) ValidateToken(_ context.Context, _ string) (string, error) {
	return v.signer, v.err
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestAuthMiddleware(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	signer := key.PublicKey()

	var seen solana.PublicKey
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := RequireSigner(w, r)
		if !ok {
			return
		}
		seen = got
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		validator  staticValidator
		wantStatus int
	}{
		{name: "valid token", header: "Bearer good", validator: staticValidator{signer: signer.String()}, wantStatus: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer good", validator: staticValidator{signer: signer.String()}, wantStatus: http.StatusNoContent},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", validator: staticValidator{err: errors.New("expired")}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = solana.PublicKey{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(tt.validator)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, signer, seen)
			}
		})
	}
}

func TestRequireSigner_WithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := RequireSigner(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(0, 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/challenge", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusCreated, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusCreated, call("10.0.0.2:1000"), "limits are per host")
}

func TestRateLimitMiddleware_IgnoresForwardedHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PeerAddrMiddleware)
	r.Use(middleware.RealIP)
	r.With(RateLimitMiddleware(0, 2)).Post("/challenge", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	allowed := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/challenge", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code == http.StatusCreated {
			allowed++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}

	assert.Equal(t, 2, allowed)
}

func TestPeerAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", PeerAddr(req), "falls back to RemoteAddr")

	var got string
	handler := PeerAddrMiddleware(middleware.RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = PeerAddr(r)
	})))
	req.Header.Set("X-Real-IP", "198.51.100.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.7", got)
}

func TestClientLimiters_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clients := newClientLimiters(0, 1, time.Minute, func() time.Time { return now })

	assert.True(t, clients.allow("10.0.0.1"))
	assert.False(t, clients.allow("10.0.0.1"))
	assert.True(t, clients.allow("10.0.0.2"))
	assert.Equal(t, 2, clients.len())

	now = now.Add(30 * time.Second)
	assert.False(t, clients.allow("10.0.0.2"))

	now = now.Add(45 * time.Second)
	assert.True(t, clients.allow("10.0.0.3"))
	assert.Equal(t, 2, clients.len(), "10.0.0.1 idle for a minute is dropped")

	now = now.Add(2 * time.Minute)
	assert.True(t, clients.allow("10.0.0.1"), "a swept client starts with a fresh burst")
	assert.Equal(t, 1, clients.len())
}

func TestHandleError_LedgerMappings(t *testing.T) {
	tests := []struct {
		err         error
		wantStatus  int
		wantMessage string
	}{
		{err: fmt.Errorf("transfer hook: %w", domain.ErrSubscriptionExpired), wantStatus: http.StatusForbidden, wantMessage: domain.ErrSubscriptionExpired.Error()},
		{err: fmt.Errorf("get subscription: %w", domain.ErrRecordNotFound), wantStatus: http.StatusNotFound, wantMessage: domain.ErrRecordNotFound.Error()},
		{err: fmt.Errorf("create record: %w", domain.ErrAlreadyInitialized), wantStatus: http.StatusConflict},
		{err: fmt.Errorf("debit: %w", domain.ErrInsufficientFunds), wantStatus: http.StatusPaymentRequired},
		{err: fmt.Errorf("%w: bad fee destination", domain.ErrMalformed), wantStatus: http.StatusBadRequest, wantMessage: "malformed account or instruction: bad fee destination"},
		{err: domain.ErrUnauthorized, wantStatus: http.StatusForbidden},
		{err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantMessage: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(context.Background(), rec, tt.err, LedgerErrorMappings)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			} else {
				assert.Equal(t, tt.err.Error(), body.Message)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	type payRequest struct {
		Subscription string `json:"subscription" validate:"required"`
	}

	rec := httptest.NewRecorder()
	ValidationError(rec, validator.New().Struct(payRequest{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Message string       `json:"message"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation error", body.Error.Message)
	assert.Equal(t, []FieldError{{Field: "Subscription", Message: "required"}}, body.Error.Details)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]int64{"expiry_timestamp": 0})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"expiry_timestamp":0}}`, rec.Body.String())
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusOK))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusPaymentRequired))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusInternalServerError))
}
