package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Mint is a token type. TransferHookProgram is nil for unhooked mints.
type Mint struct {
	Address             solana.PublicKey
	Authority           solana.PublicKey
	Decimals            uint8
	Supply              uint64
	TransferHookProgram *solana.PublicKey
	CreatedAt           time.Time
}

// HasTransferHook reports whether transfers of the mint invoke a hook program.
func (m *Mint) HasTransferHook() bool {
	return m.TransferHookProgram != nil && !m.TransferHookProgram.IsZero()
}

// TokenAccount holds an owner's balance of one mint.
type TokenAccount struct {
	Address   solana.PublicKey
	Mint      solana.PublicKey
	Owner     solana.PublicKey
	Amount    uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transfer is the result of a committed token transfer.
type Transfer struct {
	Signature   string
	Mint        solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Owner       solana.PublicKey
	Amount      uint64
}
