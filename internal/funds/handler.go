package funds

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for native accounts.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new funds handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers native account routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts/{address}", h.GetAccount)
	r.Post("/accounts/{address}/airdrop", h.Airdrop)
}

// AccountResponse represents a native account in API responses.
type AccountResponse struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

func toAccountResponse(a *domain.NativeAccount) AccountResponse {
	return AccountResponse{
		Address:  a.Address.String(),
		Lamports: a.Lamports,
	}
}

// AirdropRequest represents the request body for a faucet airdrop.
type AirdropRequest struct {
	Lamports uint64 `json:"lamports" validate:"required,gt=0"`
}

// GetAccount handles GET /accounts/{address}.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(chi.URLParam(r, "address"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.service.Balance(r.Context(), addr)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toAccountResponse(account))
}

// Airdrop handles POST /accounts/{address}/airdrop.
func (h *Handler) Airdrop(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(chi.URLParam(r, "address"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AirdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	account, err := h.service.Airdrop(r.Context(), addr, req.Lamports)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrFaucetDisabled, Status: http.StatusForbidden},
		{Error: ErrAirdropTooLarge, Status: http.StatusBadRequest},
		{Error: domain.ErrMalformed, Status: http.StatusBadRequest},
	})
}
