// Package postgres provides PostgreSQL implementation of funds repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/postgres"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements funds.Repository using PostgreSQL.
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

// GetAccount retrieves a native account by address.
func (r *Repository) GetAccount(ctx context.Context, addr solana.PublicKey) (*domain.NativeAccount, error) {
	query := `
		SELECT lamports, updated_at
		FROM native_accounts
		WHERE address = $1
	`
	account := domain.NativeAccount{Address: addr}
	var lamports int64
	err := r.db.QueryRow(ctx, query, addr.String()).Scan(&lamports, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get native account: %w", err)
	}
	account.Lamports = uint64(lamports)
	return &account, nil
}

// CreditTx adds lamports to addr, creating the account if needed.
func (r *Repository) CreditTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error {
	amount, err := postgres.ToBigint(lamports)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO native_accounts (address, lamports)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET lamports = native_accounts.lamports + EXCLUDED.lamports, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, addr.String(), amount); err != nil {
		return fmt.Errorf("credit native account: %w", postgres.WrapOverflow(err))
	}
	return nil
}

// DebitTx subtracts lamports from addr if the balance covers them.
func (r *Repository) DebitTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error {
	amount, err := postgres.ToBigint(lamports)
	if err != nil {
		return err
	}

	query := `
		UPDATE native_accounts
		SET lamports = lamports - $2, updated_at = NOW()
		WHERE address = $1 AND lamports >= $2
	`
	result, err := tx.Exec(ctx, query, addr.String(), amount)
	if err != nil {
		return fmt.Errorf("debit native account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}
