// Package address derives deterministic account addresses.
//
// Every program-owned account lives at a program derived address computed
// from a namespace tag and a key, so no lookup index is needed.
package address

import (
	"fmt"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/gagliardetto/solana-go"
)

// Namespace tags.
const (
	SubscriptionSeed      = "subscription"
	ExtraAccountMetasSeed = "extra-account-metas"
)

var (
	// Token2022ProgramID owns hooked token accounts.
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	// AssociatedTokenProgramID derives associated token account addresses.
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Derive returns the program derived address for (namespace, key) under programID.
func Derive(programID solana.PublicKey, namespace string, key solana.PublicKey) (solana.PublicKey, error) {
	return DeriveSeeds(programID, [][]byte{[]byte(namespace), key.Bytes()})
}

// DeriveSeeds returns the program derived address for arbitrary seeds.
func DeriveSeeds(programID solana.PublicKey, seeds [][]byte) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("find program address: %w", err)
	}
	return addr, nil
}

// Subscription returns the address of owner's subscription record.
func Subscription(programID, owner solana.PublicKey) (solana.PublicKey, error) {
	return Derive(programID, SubscriptionSeed, owner)
}

// ExtraAccountMetaList returns the address of mint's extra account meta list.
func ExtraAccountMetaList(programID, mint solana.PublicKey) (solana.PublicKey, error) {
	return Derive(programID, ExtraAccountMetasSeed, mint)
}

// AssociatedTokenAccount returns owner's token account address for mint.
func AssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return DeriveSeeds(AssociatedTokenProgramID, [][]byte{
		owner.Bytes(),
		Token2022ProgramID.Bytes(),
		mint.Bytes(),
	})
}

// Parse decodes a base58 public key. Invalid input wraps domain.ErrMalformed.
func Parse(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty public key", domain.ErrMalformed)
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid public key %q", domain.ErrMalformed, s)
	}
	return key, nil
}

// Expect returns domain.ErrMalformed when got differs from want.
func Expect(name string, got, want solana.PublicKey) error {
	if !got.Equals(want) {
		return fmt.Errorf("%w: %s %s does not match expected %s", domain.ErrMalformed, name, got, want)
	}
	return nil
}
