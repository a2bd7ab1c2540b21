// Package token implements the token ledger: mints, token accounts and
// checked transfers that invoke the mint's transfer hook.
package token

import (
	"context"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for token ledger storage.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CreateMint(ctx context.Context, mint *domain.Mint) error
	// GetMint returns domain.ErrAccountNotFound for unknown mints.
	GetMint(ctx context.Context, addr solana.PublicKey) (*domain.Mint, error)
	// GetMintTx reads a mint under a shared lock.
	GetMintTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Mint, error)
	GetMintForUpdateTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Mint, error)
	AddSupplyTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error

	// EnsureTokenAccountTx creates the account with zero balance if it does not exist.
	EnsureTokenAccountTx(ctx context.Context, tx pgx.Tx, account *domain.TokenAccount) error
	// LockTokenAccountsTx locks the given accounts in a fixed order and returns the ones that exist.
	LockTokenAccountsTx(ctx context.Context, tx pgx.Tx, addrs []solana.PublicKey) (map[solana.PublicKey]*domain.TokenAccount, error)
	CreditTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error
	// DebitTx returns domain.ErrInsufficientFunds when the balance is lower than amount.
	DebitTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error
	// GetTokenAccount returns domain.ErrAccountNotFound for unknown accounts.
	GetTokenAccount(ctx context.Context, addr solana.PublicKey) (*domain.TokenAccount, error)
}
