// Package postgres provides PostgreSQL implementation of subscription repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/postgres"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements subscription.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateSubscriptionTx inserts a new record. An existing record is left untouched.
func (r *Repository) CreateSubscriptionTx(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (address, owner, expiry_timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		sub.Address.String(),
		sub.Owner.String(),
		sub.ExpiryTimestamp,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAlreadyInitialized
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

const selectSubscription = `
	SELECT address, owner, expiry_timestamp, created_at, updated_at
	FROM subscriptions
	WHERE address = $1
`

// GetSubscription retrieves a record by address.
func (r *Repository) GetSubscription(ctx context.Context, addr solana.PublicKey) (*domain.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, selectSubscription, addr.String()))
}

// GetSubscriptionTx retrieves a record under a shared row lock.
func (r *Repository) GetSubscriptionTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Subscription, error) {
	return scanSubscription(tx.QueryRow(ctx, selectSubscription+" FOR SHARE", addr.String()))
}

// GetSubscriptionForUpdateTx retrieves a record under an exclusive row lock.
func (r *Repository) GetSubscriptionForUpdateTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Subscription, error) {
	return scanSubscription(tx.QueryRow(ctx, selectSubscription+" FOR UPDATE", addr.String()))
}

// UpdateExpiryTx sets the expiry of a record.
func (r *Repository) UpdateExpiryTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, expiry int64) error {
	query := `
		UPDATE subscriptions
		SET expiry_timestamp = $2, updated_at = NOW()
		WHERE address = $1
	`
	result, err := tx.Exec(ctx, query, addr.String(), expiry)
	if err != nil {
		return fmt.Errorf("update expiry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// CountActive counts records whose expiry is after now.
func (r *Repository) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE expiry_timestamp > $1`, now.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return count, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub         domain.Subscription
		addr, owner string
	)
	err := row.Scan(&addr, &owner, &sub.ExpiryTimestamp, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	if sub.Address, err = postgres.ParseKey(addr); err != nil {
		return nil, err
	}
	if sub.Owner, err = postgres.ParseKey(owner); err != nil {
		return nil, err
	}
	return &sub, nil
}
