// Package transferhook implements the token ledger's transfer-hook extension point.
//
// A mint may name a hook program. Every transfer of such a mint resolves the
// program's extra account meta list and calls the hook registered for the
// program inside the transfer's transaction. A hook error aborts the transfer.
package transferhook

import (
	"context"
	"fmt"
	"sync"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

// Execution carries the transfer parties and the resolved extra accounts.
type Execution struct {
	Source        solana.PublicKey
	Mint          solana.PublicKey
	Destination   solana.PublicKey
	Owner         solana.PublicKey
	ExtraMetaList solana.PublicKey
	Amount        uint64
	ExtraAccounts []solana.PublicKey
}

// AccountKey returns the key at a position of the fixed transfer account order.
// Positions past the fixed accounts index into ExtraAccounts.
func (e Execution) AccountKey(index uint8) (solana.PublicKey, error) {
	switch index {
	case domain.TransferAccountSource:
		return e.Source, nil
	case domain.TransferAccountMint:
		return e.Mint, nil
	case domain.TransferAccountDestination:
		return e.Destination, nil
	case domain.TransferAccountOwner:
		return e.Owner, nil
	case domain.TransferAccountExtraMetaList:
		return e.ExtraMetaList, nil
	}
	extra := int(index) - int(domain.TransferAccountExtraMetaList) - 1
	if extra < len(e.ExtraAccounts) {
		return e.ExtraAccounts[extra], nil
	}
	return solana.PublicKey{}, fmt.Errorf("%w: account index %d out of range", domain.ErrMalformed, index)
}

// Hook is called for every transfer of a mint that names its program.
type Hook interface {
	Execute(ctx context.Context, tx pgx.Tx, exec Execution) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, tx pgx.Tx, exec Execution) error

// Execute calls f.
func (f HookFunc) Execute(ctx context.Context, tx pgx.Tx, exec Execution) error {
	return f(ctx, tx, exec)
}

// Registry maps hook program IDs to hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[solana.PublicKey]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[solana.PublicKey]Hook)}
}

// Register installs hook for programID, replacing any previous one.
func (r *Registry) Register(programID solana.PublicKey, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[programID] = hook
}

// Lookup returns the hook registered for programID.
func (r *Registry) Lookup(programID solana.PublicKey) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[programID]
	return hook, ok
}
