package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/ctxlog"
	"github.com/bissquit/subledger/internal/transferhook"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MaxDecimals is the largest number of decimals a mint may have.
const MaxDecimals = 18

// HookExecutor runs a mint's transfer hook inside the transfer transaction.
type HookExecutor interface {
	Execute(ctx context.Context, tx pgx.Tx, programID solana.PublicKey, exec transferhook.Execution, supplied []solana.PublicKey) error
}

// Service implements token ledger business logic.
type Service struct {
	repo  Repository
	hooks HookExecutor
}

// NewService creates a new token service.
func NewService(repo Repository, hooks HookExecutor) *Service {
	return &Service{repo: repo, hooks: hooks}
}

// CreateMintInput holds data for creating a mint.
type CreateMintInput struct {
	Decimals            uint8
	TransferHookProgram *solana.PublicKey
}

// CreateMint creates a new mint controlled by authority.
func (s *Service) CreateMint(ctx context.Context, authority solana.PublicKey, input CreateMintInput) (*domain.Mint, error) {
	if input.Decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals must be at most %d", domain.ErrMalformed, MaxDecimals)
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint address: %w", err)
	}

	mint := &domain.Mint{
		Address:             key.PublicKey(),
		Authority:           authority,
		Decimals:            input.Decimals,
		TransferHookProgram: input.TransferHookProgram,
	}
	if err := s.repo.CreateMint(ctx, mint); err != nil {
		return nil, fmt.Errorf("create mint: %w", err)
	}

	ctxlog.FromContext(ctx).Info("mint created",
		"mint", mint.Address,
		"authority", authority,
		"decimals", mint.Decimals,
		"transfer_hook", mint.HasTransferHook(),
	)
	return mint, nil
}

// GetMint returns the mint at addr.
func (s *Service) GetMint(ctx context.Context, addr solana.PublicKey) (*domain.Mint, error) {
	return s.repo.GetMint(ctx, addr)
}

// MintTo credits amount of mint to owner's associated token account.
// Only the mint authority may mint.
func (s *Service) MintTo(ctx context.Context, authority, mintAddr, owner solana.PublicKey, amount uint64) (*domain.TokenAccount, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrMalformed)
	}

	accountAddr, err := address.AssociatedTokenAccount(owner, mintAddr)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	mint, err := s.repo.GetMintForUpdateTx(ctx, tx, mintAddr)
	if err != nil {
		return nil, fmt.Errorf("get mint %s: %w", mintAddr, err)
	}
	if !mint.Authority.Equals(authority) {
		return nil, fmt.Errorf("%w: %s is not the mint authority", domain.ErrUnauthorized, authority)
	}

	if err := s.repo.EnsureTokenAccountTx(ctx, tx, &domain.TokenAccount{
		Address: accountAddr,
		Mint:    mintAddr,
		Owner:   owner,
	}); err != nil {
		return nil, fmt.Errorf("ensure token account: %w", err)
	}
	if err := s.repo.CreditTx(ctx, tx, accountAddr, amount); err != nil {
		return nil, fmt.Errorf("credit token account: %w", err)
	}
	if err := s.repo.AddSupplyTx(ctx, tx, mintAddr, amount); err != nil {
		return nil, fmt.Errorf("add supply: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	minted.Add(float64(amount))
	return s.repo.GetTokenAccount(ctx, accountAddr)
}

// TransferInput holds data for a checked transfer.
type TransferInput struct {
	Owner            solana.PublicKey
	Mint             solana.PublicKey
	DestinationOwner solana.PublicKey
	Amount           uint64
	Decimals         uint8
	// ExtraAccounts optionally lists the hook's extra accounts as the client
	// resolved them. When present they must match the ledger's resolution.
	ExtraAccounts []solana.PublicKey
}

// TransferChecked moves tokens between owners' associated token accounts.
// If the mint names a hook program the hook runs in the same transaction,
// so a rejected transfer leaves no balance change behind.
func (s *Service) TransferChecked(ctx context.Context, input TransferInput) (transfer *domain.Transfer, err error) {
	defer func() { recordTransfer(err) }()

	if input.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrMalformed)
	}

	source, err := address.AssociatedTokenAccount(input.Owner, input.Mint)
	if err != nil {
		return nil, err
	}
	destination, err := address.AssociatedTokenAccount(input.DestinationOwner, input.Mint)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	mint, err := s.repo.GetMintTx(ctx, tx, input.Mint)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: mint %s does not exist", domain.ErrMalformed, input.Mint)
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	if mint.Decimals != input.Decimals {
		return nil, fmt.Errorf("%w: mint has %d decimals, got %d", domain.ErrMalformed, mint.Decimals, input.Decimals)
	}

	if err := s.repo.EnsureTokenAccountTx(ctx, tx, &domain.TokenAccount{
		Address: destination,
		Mint:    input.Mint,
		Owner:   input.DestinationOwner,
	}); err != nil {
		return nil, fmt.Errorf("ensure destination account: %w", err)
	}

	accounts, err := s.repo.LockTokenAccountsTx(ctx, tx, []solana.PublicKey{source, destination})
	if err != nil {
		return nil, fmt.Errorf("lock token accounts: %w", err)
	}
	if _, ok := accounts[source]; !ok {
		return nil, fmt.Errorf("source token account %s: %w", source, domain.ErrInsufficientFunds)
	}

	if err := s.repo.DebitTx(ctx, tx, source, input.Amount); err != nil {
		return nil, fmt.Errorf("debit source: %w", err)
	}
	if err := s.repo.CreditTx(ctx, tx, destination, input.Amount); err != nil {
		return nil, fmt.Errorf("credit destination: %w", err)
	}

	if mint.HasTransferHook() {
		exec := transferhook.Execution{
			Source:      source,
			Mint:        input.Mint,
			Destination: destination,
			Owner:       input.Owner,
			Amount:      input.Amount,
		}
		if err := s.hooks.Execute(ctx, tx, *mint.TransferHookProgram, exec, input.ExtraAccounts); err != nil {
			return nil, fmt.Errorf("transfer hook: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	transfer = &domain.Transfer{
		Signature:   uuid.NewString(),
		Mint:        input.Mint,
		Source:      source,
		Destination: destination,
		Owner:       input.Owner,
		Amount:      input.Amount,
	}
	ctxlog.FromContext(ctx).Info("tokens transferred",
		"signature", transfer.Signature,
		"mint", transfer.Mint,
		"owner", transfer.Owner,
		"destination", transfer.Destination,
		"amount", transfer.Amount,
	)
	return transfer, nil
}

// GetTokenAccount returns owner's associated token account for mint.
func (s *Service) GetTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (*domain.TokenAccount, error) {
	addr, err := address.AssociatedTokenAccount(owner, mint)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTokenAccount(ctx, addr)
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
