package funds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Config contains funds configuration.
type Config struct {
	FaucetEnabled     bool
	FaucetMaxLamports uint64
}

// Service implements native balance operations.
type Service struct {
	repo   Repository
	config Config
}

// NewService creates a new funds service.
func NewService(repo Repository, config Config) *Service {
	return &Service{repo: repo, config: config}
}

// Balance returns the native account at addr. Unknown accounts hold zero lamports.
func (s *Service) Balance(ctx context.Context, addr solana.PublicKey) (*domain.NativeAccount, error) {
	account, err := s.repo.GetAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return &domain.NativeAccount{Address: addr}, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// Airdrop credits lamports to addr from the development faucet.
func (s *Service) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (*domain.NativeAccount, error) {
	if !s.config.FaucetEnabled {
		return nil, ErrFaucetDisabled
	}
	if lamports == 0 {
		return nil, fmt.Errorf("%w: airdrop amount must be positive", domain.ErrMalformed)
	}
	if s.config.FaucetMaxLamports > 0 && lamports > s.config.FaucetMaxLamports {
		return nil, ErrAirdropTooLarge
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.CreditTx(ctx, tx, addr, lamports); err != nil {
		return nil, fmt.Errorf("credit account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("airdrop", "address", addr, "lamports", lamports)
	return s.Balance(ctx, addr)
}

// TransferTx moves lamports from one account to another inside tx.
// The caller owns the transaction; nothing is committed here.
func (s *Service) TransferTx(ctx context.Context, tx pgx.Tx, from, to solana.PublicKey, lamports uint64) error {
	if lamports == 0 {
		return fmt.Errorf("%w: transfer amount must be positive", domain.ErrMalformed)
	}

	if err := s.repo.DebitTx(ctx, tx, from, lamports); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := s.repo.CreditTx(ctx, tx, to, lamports); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
