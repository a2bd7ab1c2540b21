// Package postgres provides PostgreSQL implementation of token repository.
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

// Repository implements token.Repository using PostgreSQL.
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

// CreateMint creates a new mint with zero supply.
func (r *Repository) CreateMint(ctx context.Context, mint *domain.Mint) error {
	var hookProgram *string
	if mint.TransferHookProgram != nil {
		s := mint.TransferHookProgram.String()
		hookProgram = &s
	}

	query := `
		INSERT INTO mints (address, authority, decimals, transfer_hook_program)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		mint.Address.String(),
		mint.Authority.String(),
		int16(mint.Decimals),
		hookProgram,
	).Scan(&mint.CreatedAt)
	if err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	return nil
}

const selectMint = `
	SELECT address, authority, decimals, supply, transfer_hook_program, created_at
	FROM mints
	WHERE address = $1
`

// GetMint retrieves a mint by address.
func (r *Repository) GetMint(ctx context.Context, addr solana.PublicKey) (*domain.Mint, error) {
	return scanMint(r.db.QueryRow(ctx, selectMint, addr.String()))
}

// GetMintTx retrieves a mint under a shared row lock.
func (r *Repository) GetMintTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Mint, error) {
	return scanMint(tx.QueryRow(ctx, selectMint+" FOR SHARE", addr.String()))
}

// GetMintForUpdateTx retrieves a mint under an exclusive row lock.
func (r *Repository) GetMintForUpdateTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.Mint, error) {
	return scanMint(tx.QueryRow(ctx, selectMint+" FOR UPDATE", addr.String()))
}

// AddSupplyTx increases the mint supply.
func (r *Repository) AddSupplyTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error {
	value, err := postgres.ToBigint(amount)
	if err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `UPDATE mints SET supply = supply + $2 WHERE address = $1`, addr.String(), value)
	if err != nil {
		return fmt.Errorf("add supply: %w", postgres.WrapOverflow(err))
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// EnsureTokenAccountTx creates a token account if it does not exist.
func (r *Repository) EnsureTokenAccountTx(ctx context.Context, tx pgx.Tx, account *domain.TokenAccount) error {
	query := `
		INSERT INTO token_accounts (address, mint, owner)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := tx.Exec(ctx, query, account.Address.String(), account.Mint.String(), account.Owner.String()); err != nil {
		return fmt.Errorf("ensure token account: %w", err)
	}
	return nil
}

// LockTokenAccountsTx locks accounts ordered by address so concurrent
// transfers between the same pair never deadlock.
func (r *Repository) LockTokenAccountsTx(ctx context.Context, tx pgx.Tx, addrs []solana.PublicKey) (map[solana.PublicKey]*domain.TokenAccount, error) {
	keys := make([]string, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, a.String())
	}

	query := `
		SELECT address, mint, owner, amount, created_at, updated_at
		FROM token_accounts
		WHERE address = ANY($1)
		ORDER BY address
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("lock token accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[solana.PublicKey]*domain.TokenAccount, len(addrs))
	for rows.Next() {
		account, err := scanTokenAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts[account.Address] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token accounts: %w", err)
	}

	return accounts, nil
}

// CreditTx adds amount to a token account.
func (r *Repository) CreditTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error {
	value, err := postgres.ToBigint(amount)
	if err != nil {
		return err
	}

	query := `UPDATE token_accounts SET amount = amount + $2, updated_at = NOW() WHERE address = $1`
	result, err := tx.Exec(ctx, query, addr.String(), value)
	if err != nil {
		return fmt.Errorf("credit token account: %w", postgres.WrapOverflow(err))
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// DebitTx subtracts amount from a token account if the balance covers it.
func (r *Repository) DebitTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey, amount uint64) error {
	value, err := postgres.ToBigint(amount)
	if err != nil {
		return err
	}

	query := `
		UPDATE token_accounts
		SET amount = amount - $2, updated_at = NOW()
		WHERE address = $1 AND amount >= $2
	`
	result, err := tx.Exec(ctx, query, addr.String(), value)
	if err != nil {
		return fmt.Errorf("debit token account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// GetTokenAccount retrieves a token account by address.
func (r *Repository) GetTokenAccount(ctx context.Context, addr solana.PublicKey) (*domain.TokenAccount, error) {
	query := `
		SELECT address, mint, owner, amount, created_at, updated_at
		FROM token_accounts
		WHERE address = $1
	`
	account, err := scanTokenAccount(r.db.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func scanMint(row pgx.Row) (*domain.Mint, error) {
	var (
		mint            domain.Mint
		addr, authority string
		decimals        int16
		supply          int64
		hookProgram     *string
	)
	err := row.Scan(&addr, &authority, &decimals, &supply, &hookProgram, &mint.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}

	if mint.Address, err = postgres.ParseKey(addr); err != nil {
		return nil, err
	}
	if mint.Authority, err = postgres.ParseKey(authority); err != nil {
		return nil, err
	}
	if mint.TransferHookProgram, err = postgres.ParseOptionalKey(hookProgram); err != nil {
		return nil, err
	}
	mint.Decimals = uint8(decimals)
	mint.Supply = uint64(supply)
	return &mint, nil
}

func scanTokenAccount(row pgx.Row) (*domain.TokenAccount, error) {
	var (
		account           domain.TokenAccount
		addr, mint, owner string
		amount            int64
	)
	if err := row.Scan(&addr, &mint, &owner, &amount, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan token account: %w", err)
	}

	var err error
	if account.Address, err = postgres.ParseKey(addr); err != nil {
		return nil, err
	}
	if account.Mint, err = postgres.ParseKey(mint); err != nil {
		return nil, err
	}
	if account.Owner, err = postgres.ParseKey(owner); err != nil {
		return nil, err
	}
	account.Amount = uint64(amount)
	return &account, nil
}
