package transferhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Executor runs the hook of a mint's program for one transfer.
type Executor struct {
	registry *Registry
	repo     Repository
}

// NewExecutor creates a new executor.
func NewExecutor(registry *Registry, repo Repository) *Executor {
	return &Executor{registry: registry, repo: repo}
}

// Execute loads the mint's extra account meta list, resolves it against the
// transfer, checks the accounts the client supplied and calls the hook.
// exec.ExtraMetaList and exec.ExtraAccounts are filled in by Execute.
func (e *Executor) Execute(ctx context.Context, tx pgx.Tx, programID solana.PublicKey, exec Execution, supplied []solana.PublicKey) error {
	hook, ok := e.registry.Lookup(programID)
	if !ok {
		return fmt.Errorf("%w: no transfer hook registered for program %s", domain.ErrMalformed, programID)
	}

	listAddr, err := address.ExtraAccountMetaList(programID, exec.Mint)
	if err != nil {
		return err
	}

	list, err := e.repo.GetMetaListTx(ctx, tx, listAddr)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("%w: extra account meta list %s not initialized", domain.ErrMalformed, listAddr)
		}
		return fmt.Errorf("get extra account meta list: %w", err)
	}
	if err := address.Expect("extra account meta list program", list.ProgramID, programID); err != nil {
		return err
	}

	exec.ExtraMetaList = listAddr
	resolved, err := Resolve(programID, list.Metas, exec)
	if err != nil {
		return err
	}
	if err := MatchSupplied(resolved, supplied); err != nil {
		return err
	}
	exec.ExtraAccounts = resolved

	return hook.Execute(ctx, tx, exec)
}
