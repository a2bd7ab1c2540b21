// Package subscription implements the subscription ledger program: per-owner
// subscription records, fee payments that extend them, and the transfer hook
// that rejects transfers from owners whose subscription has expired.
package subscription

import (
	"context"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for subscription record storage.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateSubscriptionTx returns domain.ErrAlreadyInitialized if a record exists at the address.
	CreateSubscriptionTx(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error
	// GetSubscription returns domain.ErrRecordNotFound if no record exists.
	GetSubscription(ctx context.Context, addr solana.PublicKey) (*domain.Subscription, error)
	// GetSubscriptionTx reads a record under a shared lock.
	GetSubscriptionTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Subscription, error)
	// GetSubscriptionForUpdateTx reads a record under an exclusive lock held until tx ends.
	GetSubscriptionForUpdateTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Subscription, error)
	UpdateExpiryTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, expiry int64) error

	CountActive(ctx context.Context, now time.Time) (int, error)
}
