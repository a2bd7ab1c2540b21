package transferhook

import (
	"fmt"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/gagliardetto/solana-go"
)

// Resolve derives the address of every declared extra account for one transfer.
// Metas are resolved in order so a later meta may reference an earlier one.
func Resolve(programID solana.PublicKey, metas []domain.ExtraAccountMeta, exec Execution) ([]solana.PublicKey, error) {
	exec.ExtraAccounts = make([]solana.PublicKey, 0, len(metas))

	for i, meta := range metas {
		if len(meta.Seeds) == 0 {
			return nil, fmt.Errorf("%w: extra account %d has no seeds", domain.ErrMalformed, i)
		}

		seeds := make([][]byte, 0, len(meta.Seeds))
		for _, seed := range meta.Seeds {
			switch seed.Kind {
			case domain.SeedKindLiteral:
				seeds = append(seeds, seed.Bytes)
			case domain.SeedKindAccountKey:
				key, err := exec.AccountKey(seed.Index)
				if err != nil {
					return nil, fmt.Errorf("resolve extra account %d: %w", i, err)
				}
				seeds = append(seeds, key.Bytes())
			default:
				return nil, fmt.Errorf("%w: unknown seed kind %q", domain.ErrMalformed, seed.Kind)
			}
		}

		addr, err := address.DeriveSeeds(programID, seeds)
		if err != nil {
			return nil, fmt.Errorf("%w: derive extra account %d: %v", domain.ErrMalformed, i, err)
		}
		exec.ExtraAccounts = append(exec.ExtraAccounts, addr)
	}

	return exec.ExtraAccounts, nil
}

// MatchSupplied compares client supplied extra accounts with the resolved ones.
// An empty supplied list means the client left resolution to the ledger.
func MatchSupplied(resolved, supplied []solana.PublicKey) error {
	if len(supplied) == 0 {
		return nil
	}
	if len(supplied) != len(resolved) {
		return fmt.Errorf("%w: expected %d extra accounts, got %d", domain.ErrMalformed, len(resolved), len(supplied))
	}
	for i := range resolved {
		if err := address.Expect(fmt.Sprintf("extra account %d", i), supplied[i], resolved[i]); err != nil {
			return err
		}
	}
	return nil
}
