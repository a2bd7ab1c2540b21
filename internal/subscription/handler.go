package subscription

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the subscription program.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscription handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers read-only routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/program", h.GetProgram)
	r.Get("/subscriptions/{owner}", h.GetSubscription)
	r.Get("/mints/{mint}/extra-account-metas", h.GetExtraAccountMetaList)
}

// RegisterSignerRoutes registers instruction routes that need an authenticated signer.
func (h *Handler) RegisterSignerRoutes(r chi.Router) {
	r.Post("/subscriptions", h.Initialize)
	r.Post("/subscriptions/pay", h.Pay)
	r.Post("/mints/{mint}/extra-account-metas", h.InitializeExtraAccountMetaList)
}

// ProgramResponse describes the program configuration.
type ProgramResponse struct {
	ProgramID       string `json:"program_id"`
	FeeLamports     uint64 `json:"fee_lamports"`
	DurationSeconds int64  `json:"duration_seconds"`
	Treasury        string `json:"treasury"`
}

// SubscriptionResponse represents a subscription record in API responses.
type SubscriptionResponse struct {
	Address         string     `json:"address"`
	Owner           string     `json:"owner"`
	ExpiryTimestamp int64      `json:"expiry_timestamp"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Active          bool       `json:"active"`
}

func (h *Handler) toSubscriptionResponse(sub *domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		Address:         sub.Address.String(),
		Owner:           sub.Owner.String(),
		ExpiryTimestamp: sub.ExpiryTimestamp,
		ExpiresAt:       sub.ExpiresAt(),
		Active:          sub.IsActive(h.service.Now()),
	}
}

// InitializeRequest represents the request body for creating a subscription record.
// Owner defaults to the signer.
type InitializeRequest struct {
	Owner string `json:"owner"`
}

// PayRequest represents the request body for paying a subscription.
type PayRequest struct {
	Subscription   string `json:"subscription" validate:"required"`
	FeeDestination string `json:"fee_destination" validate:"required"`
}

// PaymentResponse represents a completed payment.
type PaymentResponse struct {
	Signature      string `json:"signature"`
	Payer          string `json:"payer"`
	FeeDestination string `json:"fee_destination"`
	Amount         uint64 `json:"amount"`
	PreviousExpiry int64  `json:"previous_expiry"`
	NewExpiry      int64  `json:"new_expiry"`
}

// PayResponse represents the response of a payment.
type PayResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Payment      PaymentResponse      `json:"payment"`
}

// ExtraAccountMetaListResponse represents an extra account meta list.
type ExtraAccountMetaListResponse struct {
	Address   string                    `json:"address"`
	Mint      string                    `json:"mint"`
	ProgramID string                    `json:"program_id"`
	Metas     []domain.ExtraAccountMeta `json:"metas"`
}

func toExtraAccountMetaListResponse(list *domain.ExtraAccountMetaList) ExtraAccountMetaListResponse {
	return ExtraAccountMetaListResponse{
		Address:   list.Address.String(),
		Mint:      list.Mint.String(),
		ProgramID: list.ProgramID.String(),
		Metas:     list.Metas,
	}
}

// GetProgram handles GET /program.
func (h *Handler) GetProgram(w http.ResponseWriter, _ *http.Request) {
	cfg := h.service.Config()
	httputil.Success(w, http.StatusOK, ProgramResponse{
		ProgramID:       cfg.ProgramID.String(),
		FeeLamports:     cfg.FeeLamports,
		DurationSeconds: int64(cfg.Duration / time.Second),
		Treasury:        cfg.Treasury.String(),
	})
}

// GetSubscription handles GET /subscriptions/{owner}.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	owner, err := address.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.service.Get(r.Context(), owner)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.toSubscriptionResponse(sub))
}

// Initialize handles POST /subscriptions.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	payer, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	owner := payer
	if req.Owner != "" {
		parsed, err := address.Parse(req.Owner)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		owner = parsed
	}

	sub, err := h.service.Initialize(r.Context(), payer, owner)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, h.toSubscriptionResponse(sub))
}

// Pay handles POST /subscriptions/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	payer, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	subAddr, err := address.Parse(req.Subscription)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	feeDestination, err := address.Parse(req.FeeDestination)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, event, err := h.service.Pay(r.Context(), PayInput{
		Payer:          payer,
		Subscription:   subAddr,
		FeeDestination: feeDestination,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, PayResponse{
		Subscription: h.toSubscriptionResponse(sub),
		Payment: PaymentResponse{
			Signature:      event.Signature,
			Payer:          event.Payer.String(),
			FeeDestination: event.FeeDestination.String(),
			Amount:         event.Amount,
			PreviousExpiry: event.PreviousExpiry,
			NewExpiry:      event.NewExpiry,
		},
	})
}

// InitializeExtraAccountMetaList handles POST /mints/{mint}/extra-account-metas.
func (h *Handler) InitializeExtraAccountMetaList(w http.ResponseWriter, r *http.Request) {
	payer, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	mint, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.InitializeExtraAccountMetaList(r.Context(), payer, mint)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, toExtraAccountMetaListResponse(list))
}

// GetExtraAccountMetaList handles GET /mints/{mint}/extra-account-metas.
func (h *Handler) GetExtraAccountMetaList(w http.ResponseWriter, r *http.Request) {
	mint, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.GetExtraAccountMetaList(r.Context(), mint)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toExtraAccountMetaListResponse(list))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, httputil.LedgerErrorMappings)
}
