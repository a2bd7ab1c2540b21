package token

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/httputil"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the token ledger.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new token handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers read-only routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/mints/{mint}", h.GetMint)
	r.Get("/token-accounts/{owner}/{mint}", h.GetTokenAccount)
}

// RegisterSignerRoutes registers routes that need an authenticated signer.
func (h *Handler) RegisterSignerRoutes(r chi.Router) {
	r.Post("/mints", h.CreateMint)
	r.Post("/mints/{mint}/mint-to", h.MintTo)
	r.Post("/transfers", h.Transfer)
}

// MintResponse represents a mint in API responses.
type MintResponse struct {
	Address             string  `json:"address"`
	Authority           string  `json:"authority"`
	Decimals            uint8   `json:"decimals"`
	Supply              uint64  `json:"supply"`
	TransferHookProgram *string `json:"transfer_hook_program"`
}

func toMintResponse(m *domain.Mint) MintResponse {
	resp := MintResponse{
		Address:   m.Address.String(),
		Authority: m.Authority.String(),
		Decimals:  m.Decimals,
		Supply:    m.Supply,
	}
	if m.TransferHookProgram != nil {
		program := m.TransferHookProgram.String()
		resp.TransferHookProgram = &program
	}
	return resp
}

// TokenAccountResponse represents a token account in API responses.
type TokenAccountResponse struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

func toTokenAccountResponse(a *domain.TokenAccount) TokenAccountResponse {
	return TokenAccountResponse{
		Address: a.Address.String(),
		Mint:    a.Mint.String(),
		Owner:   a.Owner.String(),
		Amount:  a.Amount,
	}
}

// TransferResponse represents a completed transfer.
type TransferResponse struct {
	Signature   string `json:"signature"`
	Mint        string `json:"mint"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Owner       string `json:"owner"`
	Amount      uint64 `json:"amount"`
}

// CreateMintRequest represents the request body for creating a mint.
type CreateMintRequest struct {
	Decimals            *uint8 `json:"decimals" validate:"required,lte=18"`
	TransferHookProgram string `json:"transfer_hook_program"`
}

// MintToRequest represents the request body for minting tokens.
type MintToRequest struct {
	Owner  string `json:"owner" validate:"required"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

// TransferRequest represents the request body for a checked transfer.
type TransferRequest struct {
	Mint             string   `json:"mint" validate:"required"`
	DestinationOwner string   `json:"destination_owner" validate:"required"`
	Amount           uint64   `json:"amount" validate:"required,gt=0"`
	Decimals         *uint8   `json:"decimals" validate:"required"`
	ExtraAccounts    []string `json:"extra_accounts"`
}

// CreateMint handles POST /mints.
func (h *Handler) CreateMint(w http.ResponseWriter, r *http.Request) {
	authority, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	var req CreateMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateMintInput{Decimals: *req.Decimals}
	if req.TransferHookProgram != "" {
		program, err := address.Parse(req.TransferHookProgram)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		input.TransferHookProgram = &program
	}

	mint, err := h.service.CreateMint(r.Context(), authority, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, toMintResponse(mint))
}

// GetMint handles GET /mints/{mint}.
func (h *Handler) GetMint(w http.ResponseWriter, r *http.Request) {
	mintAddr, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	mint, err := h.service.GetMint(r.Context(), mintAddr)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toMintResponse(mint))
}

// MintTo handles POST /mints/{mint}/mint-to.
func (h *Handler) MintTo(w http.ResponseWriter, r *http.Request) {
	authority, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	mintAddr, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var req MintToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	owner, err := address.Parse(req.Owner)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.service.MintTo(r.Context(), authority, mintAddr, owner, req.Amount)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toTokenAccountResponse(account))
}

// Transfer handles POST /transfers.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := httputil.RequireSigner(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	mint, err := address.Parse(req.Mint)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	destinationOwner, err := address.Parse(req.DestinationOwner)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	extras := make([]solana.PublicKey, 0, len(req.ExtraAccounts))
	for _, s := range req.ExtraAccounts {
		key, err := address.Parse(s)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		extras = append(extras, key)
	}

	transfer, err := h.service.TransferChecked(r.Context(), TransferInput{
		Owner:            owner,
		Mint:             mint,
		DestinationOwner: destinationOwner,
		Amount:           req.Amount,
		Decimals:         *req.Decimals,
		ExtraAccounts:    extras,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, TransferResponse{
		Signature:   transfer.Signature,
		Mint:        transfer.Mint.String(),
		Source:      transfer.Source.String(),
		Destination: transfer.Destination.String(),
		Owner:       transfer.Owner.String(),
		Amount:      transfer.Amount,
	})
}

// GetTokenAccount handles GET /token-accounts/{owner}/{mint}.
func (h *Handler) GetTokenAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := address.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.service.GetTokenAccount(r.Context(), owner, mint)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, toTokenAccountResponse(account))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, httputil.LedgerErrorMappings)
}
