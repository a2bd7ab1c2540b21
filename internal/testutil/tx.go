package testutil

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Tx is an in-memory pgx.Tx for unit tests. Mock repositories register undo
// functions that run in reverse order when the transaction is rolled back.
type Tx struct {
	pgx.Tx

	mu         sync.Mutex
	undo       []func()
	onClose    []func()
	committed  bool
	rolledBack bool
	CommitErr  error
}

// NewTx creates a new in-memory transaction.
func NewTx() *Tx {
	return &Tx{}
}

// OnRollback registers fn to run if the transaction is rolled back.
func (t *Tx) OnRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

// OnClose registers fn to run once the transaction commits or rolls back.
// Mocks use it to release row locks.
func (t *Tx) OnClose(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = append(t.onClose, fn)
}

// Commit marks the transaction committed unless CommitErr is set.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	if t.CommitErr != nil {
		t.rollbackLocked()
		t.closeLocked()
		return t.CommitErr
	}
	t.committed = true
	t.closeLocked()
	return nil
}

// Rollback undoes registered changes. Returns pgx.ErrTxClosed after commit.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rollbackLocked()
	t.closeLocked()
	return nil
}

func (t *Tx) closeLocked() {
	for _, fn := range t.onClose {
		fn()
	}
	t.onClose = nil
}

func (t *Tx) rollbackLocked() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.rolledBack = true
}

// Committed reports whether Commit succeeded.
func (t *Tx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// RolledBack reports whether the transaction was rolled back.
func (t *Tx) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}
