// Package funds implements the native lamport ledger that subscription fees are paid from.
package funds

import (
	"context"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for native account storage.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	// GetAccount returns domain.ErrAccountNotFound for unknown addresses.
	GetAccount(ctx context.Context, addr solana.PublicKey) (*domain.NativeAccount, error)
	CreditTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error
	// DebitTx returns domain.ErrInsufficientFunds when the balance is lower than lamports.
	DebitTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error
}
