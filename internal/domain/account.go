package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// NativeAccount holds a lamport balance. Subscription fees are paid
// from and into native accounts.
type NativeAccount struct {
	Address   solana.PublicKey
	Lamports  uint64
	UpdatedAt time.Time
}
