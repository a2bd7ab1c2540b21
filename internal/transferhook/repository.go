package transferhook

import (
	"context"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Repository stores extra account meta lists.
type Repository interface {
	// CreateMetaListTx returns domain.ErrAlreadyInitialized if the address is taken.
	CreateMetaListTx(ctx context.Context, tx pgx.Tx, list *domain.ExtraAccountMetaList) error
	// GetMetaList returns domain.ErrAccountNotFound if no list exists.
	GetMetaList(ctx context.Context, addr solana.PublicKey) (*domain.ExtraAccountMetaList, error)
	GetMetaListTx(ctx context.Context, tx pgx.Tx, addr solana.PublicKey) (*domain.ExtraAccountMetaList, error)
}
