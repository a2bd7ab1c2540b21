package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Fixed account order of a transfer-hook execution. AccountKey seeds
// refer to these positions.
const (
	TransferAccountSource uint8 = iota
	TransferAccountMint
	TransferAccountDestination
	TransferAccountOwner
	TransferAccountExtraMetaList
)

// SeedKind selects how a Seed contributes bytes to a derivation.
type SeedKind string

const (
	// SeedKindLiteral seeds use Seed.Bytes as is.
	SeedKindLiteral SeedKind = "literal"
	// SeedKindAccountKey seeds use the key of the transfer account at Seed.Index.
	SeedKindAccountKey SeedKind = "account_key"
)

// Seed is one component of an extra account's address derivation.
type Seed struct {
	Kind  SeedKind `json:"kind"`
	Bytes []byte   `json:"bytes,omitempty"`
	Index uint8    `json:"index,omitempty"`
}

// LiteralSeed returns a seed with fixed bytes.
func LiteralSeed(b []byte) Seed {
	return Seed{Kind: SeedKindLiteral, Bytes: b}
}

// AccountKeySeed returns a seed that takes the key of the transfer account at index.
func AccountKeySeed(index uint8) Seed {
	return Seed{Kind: SeedKindAccountKey, Index: index}
}

// ExtraAccountMeta declares one additional account a transfer hook needs.
// The address is not known statically; it is derived per transfer from Seeds
// under the hook program.
type ExtraAccountMeta struct {
	Seeds      []Seed `json:"seeds"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// ExtraAccountMetaList is the persisted per-mint declaration of extra accounts.
type ExtraAccountMetaList struct {
	Address   solana.PublicKey
	Mint      solana.PublicKey
	ProgramID solana.PublicKey
	Metas     []ExtraAccountMeta
	CreatedAt time.Time
}
