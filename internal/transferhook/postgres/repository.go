// Package postgres provides PostgreSQL implementation of transferhook repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/postgres"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements transferhook.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateMetaListTx stores a new extra account meta list.
func (r *Repository) CreateMetaListTx(ctx context.Context, tx pgx.Tx, list *domain.ExtraAccountMetaList) error {
	metas, err := json.Marshal(list.Metas)
	if err != nil {
		return fmt.Errorf("marshal metas: %w", err)
	}

	query := `
		INSERT INTO extra_account_meta_lists (address, mint, program_id, metas)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query,
		list.Address.String(),
		list.Mint.String(),
		list.ProgramID.String(),
		metas,
	).Scan(&list.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAlreadyInitialized
		}
		return fmt.Errorf("create extra account meta list: %w", err)
	}
	return nil
}

// GetMetaList retrieves a list by address.
func (r *Repository) GetMetaList(ctx context.Context, addr solana.PublicKey) (*domain.ExtraAccountMetaList, error) {
	return getMetaList(ctx, r.db, addr)
}

// GetMetaListTx retrieves a list by address within a transaction.
func (r *Repository) GetMetaListTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.ExtraAccountMetaList, error) {
	return getMetaList(ctx, tx, addr)
}

func getMetaList(ctx context.Context, q postgres.Querier, addr solana.PublicKey) (*domain.ExtraAccountMetaList, error) {
	query := `
		SELECT address, mint, program_id, metas, created_at
		FROM extra_account_meta_lists
		WHERE address = $1
	`
	var (
		list                     domain.ExtraAccountMetaList
		addrStr, mint, programID string
		metas                    []byte
	)
	err := q.QueryRow(ctx, query, addr.String()).Scan(&addrStr, &mint, &programID, &metas, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get extra account meta list: %w", err)
	}

	if list.Address, err = postgres.ParseKey(addrStr); err != nil {
		return nil, err
	}
	if list.Mint, err = postgres.ParseKey(mint); err != nil {
		return nil, err
	}
	if list.ProgramID, err = postgres.ParseKey(programID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metas, &list.Metas); err != nil {
		return nil, fmt.Errorf("unmarshal metas: %w", err)
	}
	return &list, nil
}
