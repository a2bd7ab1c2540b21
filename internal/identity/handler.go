package identity

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/httputil"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// RateLimit limits challenge requests per client IP.
type RateLimit struct {
	Rate  rate.Limit
	Burst int
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
	limit     RateLimit
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service, limit RateLimit) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		limit:     limit,
	}
}

// RegisterRoutes registers identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(httputil.RateLimitMiddleware(h.limit.Rate, h.limit.Burst)).Post("/challenge", h.Challenge)
		r.Post("/verify", h.Verify)
	})
}

// ChallengeRequest represents challenge request body.
type ChallengeRequest struct {
	PublicKey string `json:"public_key" validate:"required"`
}

// ChallengeResponse represents an issued challenge.
type ChallengeResponse struct {
	PublicKey string    `json:"public_key"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest represents verify request body. Signature is the base58
// ed25519 signature of the challenge message.
type VerifyRequest struct {
	PublicKey string `json:"public_key" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// TokenResponse represents an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Challenge handles POST /auth/challenge.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	publicKey, err := address.Parse(req.PublicKey)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	challenge, err := h.service.Challenge(r.Context(), publicKey)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, ChallengeResponse{
		PublicKey: challenge.PublicKey.String(),
		Nonce:     challenge.Nonce,
		Message:   string(challenge.Message()),
		ExpiresAt: challenge.ExpiresAt,
	})
}

// Verify handles POST /auth/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	publicKey, err := address.Parse(req.PublicKey)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	signature, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "malformed signature")
		return
	}

	token, err := h.service.Verify(r.Context(), publicKey, req.Nonce, signature)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrChallengeNotFound, Status: http.StatusUnauthorized},
		{Error: ErrInvalidSignature, Status: http.StatusUnauthorized},
		{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
		{Error: domain.ErrMalformed, Status: http.StatusBadRequest},
	})
}
