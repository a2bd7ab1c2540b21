package funds

import (
	"context"
	"testing"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/testutil"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	balances map[solana.PublicKey]uint64
	lastTx   *testutil.Tx
}

func newMockRepository() *mockRepository {
	return &mockRepository{balances: make(map[solana.PublicKey]uint64)}
}

func (m *mockRepository) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.lastTx = testutil.NewTx()
	return m.lastTx, nil
}

func (m *mockRepository) GetAccount(_ context.Context, addr solana.PublicKey) (*domain.NativeAccount, error) {
	lamports, ok := m.balances[addr]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.NativeAccount{Address: addr, Lamports: lamports}, nil
}

func (m *mockRepository) CreditTx(_ context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error {
	prev, existed := m.balances[addr]
	m.balances[addr] = prev + lamports
	tx.(*testutil.Tx).OnRollback(func() {
		if existed {
			m.balances[addr] = prev
		} else {
			delete(m.balances, addr)
		}
	})
	return nil
}

func (m *mockRepository) DebitTx(_ context.Context, tx pgx.Tx, addr solana.PublicKey, lamports uint64) error {
	prev := m.balances[addr]
	if prev < lamports {
		return domain.ErrInsufficientFunds
	}
	m.balances[addr] = prev - lamports
	tx.(*testutil.Tx).OnRollback(func() { m.balances[addr] = prev })
	return nil
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk.PublicKey()
}

func TestService_Balance_UnknownAccountIsZero(t *testing.T) {
	svc := NewService(newMockRepository(), Config{})
	addr := newKey(t)

	account, err := svc.Balance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, addr, account.Address)
	assert.Zero(t, account.Lamports)
}

func TestService_Airdrop(t *testing.T) {
	ctx := context.Background()
	addr := newKey(t)

	t.Run("disabled", func(t *testing.T) {
		svc := NewService(newMockRepository(), Config{FaucetEnabled: false})
		_, err := svc.Airdrop(ctx, addr, 100)
		assert.ErrorIs(t, err, ErrFaucetDisabled)
	})

	t.Run("over limit", func(t *testing.T) {
		svc := NewService(newMockRepository(), Config{FaucetEnabled: true, FaucetMaxLamports: 10})
		_, err := svc.Airdrop(ctx, addr, 11)
		assert.ErrorIs(t, err, ErrAirdropTooLarge)
	})

	t.Run("zero", func(t *testing.T) {
		svc := NewService(newMockRepository(), Config{FaucetEnabled: true})
		_, err := svc.Airdrop(ctx, addr, 0)
		assert.ErrorIs(t, err, domain.ErrMalformed)
	})

	t.Run("credits and commits", func(t *testing.T) {
		repo := newMockRepository()
		svc := NewService(repo, Config{FaucetEnabled: true, FaucetMaxLamports: 1_000})

		account, err := svc.Airdrop(ctx, addr, 700)
		require.NoError(t, err)
		assert.Equal(t, uint64(700), account.Lamports)
		assert.True(t, repo.lastTx.Committed())
	})
}

func TestService_TransferTx(t *testing.T) {
	ctx := context.Background()
	from, to := newKey(t), newKey(t)

	t.Run("moves lamports", func(t *testing.T) {
		repo := newMockRepository()
		repo.balances[from] = 100
		svc := NewService(repo, Config{})

		tx := testutil.NewTx()
		require.NoError(t, svc.TransferTx(ctx, tx, from, to, 40))
		assert.Equal(t, uint64(60), repo.balances[from])
		assert.Equal(t, uint64(40), repo.balances[to])
	})

	t.Run("insufficient funds leaves balances", func(t *testing.T) {
		repo := newMockRepository()
		repo.balances[from] = 10
		svc := NewService(repo, Config{})

		tx := testutil.NewTx()
		err := svc.TransferTx(ctx, tx, from, to, 40)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Equal(t, uint64(10), repo.balances[from])
		_, ok := repo.balances[to]
		assert.False(t, ok)
	})

	t.Run("rollback restores both sides", func(t *testing.T) {
		repo := newMockRepository()
		repo.balances[from] = 100
		svc := NewService(repo, Config{})

		tx := testutil.NewTx()
		require.NoError(t, svc.TransferTx(ctx, tx, from, to, 40))
		require.NoError(t, tx.Rollback(ctx))

		assert.Equal(t, uint64(100), repo.balances[from])
		_, ok := repo.balances[to]
		assert.False(t, ok)
	})

	t.Run("zero amount", func(t *testing.T) {
		svc := NewService(newMockRepository(), Config{})
		err := svc.TransferTx(ctx, testutil.NewTx(), from, to, 0)
		assert.ErrorIs(t, err, domain.ErrMalformed)
	})
}
