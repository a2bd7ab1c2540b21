//go:build integration

package app_test

import (
	"math"
	"net/http"
	"sync"
	"testing"

	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/testutil"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_UnhookedMintTransfersFreely(t *testing.T) {
	issuer := newWallet(t)
	alice := newWallet(t)
	bob := newWallet(t)

	resp, err := issuer.client.POST("/api/v1/mints", map[string]interface{}{"decimals": 2})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		Data struct {
			Address             string  `json:"address"`
			Decimals            uint8   `json:"decimals"`
			TransferHookProgram *string `json:"transfer_hook_program"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	mint := result.Data.Address
	assert.Nil(t, result.Data.TransferHookProgram)

	mintTo(t, issuer, mint, alice.pubkey(), 500)

	resp, err = alice.client.POST("/api/v1/transfers", map[string]interface{}{
		"mint":              mint,
		"destination_owner": bob.pubkey().String(),
		"amount":            200,
		"decimals":          2,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, testutil.ReadBody(t, resp))
	_ = resp.Body.Close()

	assert.Equal(t, uint64(300), tokenBalance(t, alice.client, alice.pubkey(), mint))
	assert.Equal(t, uint64(200), tokenBalance(t, alice.client, bob.pubkey(), mint))

	// Unhooked mints carry no extra account meta list.
	resp, err = issuer.client.POST("/api/v1/mints/"+mint+"/extra-account-metas", nil)
	require.NoError(t, err)
	requireError(t, resp, http.StatusBadRequest, "")
}

func TestToken_MintToRequiresAuthority(t *testing.T) {
	issuer := newWallet(t)
	mallory := newWallet(t)
	mint := createHookedMint(t, issuer)

	resp, err := mallory.client.POST("/api/v1/mints/"+mint+"/mint-to", map[string]interface{}{
		"owner":  mallory.pubkey().String(),
		"amount": 1,
	})
	require.NoError(t, err)
	requireError(t, resp, http.StatusForbidden, "")

	resp, err = mallory.client.GET("/api/v1/mints/" + mint)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Data struct {
			Supply uint64 `json:"supply"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, uint64(0), result.Data.Supply)
}

func TestToken_MintToRejectsSupplyOverflow(t *testing.T) {
	issuer := newWallet(t)
	mint := createHookedMint(t, issuer)
	mintTo(t, issuer, mint, issuer.pubkey(), math.MaxInt64)

	resp, err := issuer.client.POST("/api/v1/mints/"+mint+"/mint-to", map[string]interface{}{
		"owner":  issuer.pubkey().String(),
		"amount": uint64(math.MaxInt64),
	})
	require.NoError(t, err)
	requireError(t, resp, http.StatusBadRequest, "")

	assert.Equal(t, uint64(math.MaxInt64), tokenBalance(t, issuer.client, issuer.pubkey(), mint))
}

func TestToken_TransferChecks(t *testing.T) {
	issuer := newWallet(t)
	alice := newWallet(t)
	bob := newWallet(t)
	airdrop(t, alice, testFee)
	subscribe(t, alice)

	mint := createHookedMint(t, issuer)
	mintTo(t, issuer, mint, alice.pubkey(), 100)

	t.Run("decimals mismatch", func(t *testing.T) {
		resp, err := alice.client.POST("/api/v1/transfers", map[string]interface{}{
			"mint":              mint,
			"destination_owner": bob.pubkey().String(),
			"amount":            1,
			"decimals":          9,
		})
		require.NoError(t, err)
		requireError(t, resp, http.StatusBadRequest, "")
	})

	t.Run("insufficient balance", func(t *testing.T) {
		resp, err := transfer(alice.client, mint, bob.pubkey(), 101)
		require.NoError(t, err)
		requireError(t, resp, http.StatusPaymentRequired, "")
		assert.Equal(t, uint64(100), tokenBalance(t, alice.client, alice.pubkey(), mint))
	})

	t.Run("matching extra accounts", func(t *testing.T) {
		record, err := address.Subscription(programID, alice.pubkey())
		require.NoError(t, err)

		resp, err := alice.client.POST("/api/v1/transfers", map[string]interface{}{
			"mint":              mint,
			"destination_owner": bob.pubkey().String(),
			"amount":            1,
			"decimals":          6,
			"extra_accounts":    []string{record.String()},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, testutil.ReadBody(t, resp))
		_ = resp.Body.Close()
	})

	t.Run("mismatched extra accounts", func(t *testing.T) {
		resp, err := alice.client.POST("/api/v1/transfers", map[string]interface{}{
			"mint":              mint,
			"destination_owner": bob.pubkey().String(),
			"amount":            1,
			"decimals":          6,
			"extra_accounts":    []string{solana.SystemProgramID.String()},
		})
		require.NoError(t, err)
		requireError(t, resp, http.StatusBadRequest, "")
		assert.Equal(t, uint64(99), tokenBalance(t, alice.client, alice.pubkey(), mint))
	})
}

func TestToken_ConcurrentCrossTransfers(t *testing.T) {
	const rounds = 20

	issuer := newWallet(t)
	alice := newWallet(t)
	bob := newWallet(t)
	airdrop(t, alice, testFee)
	airdrop(t, bob, testFee)
	subscribe(t, alice)
	subscribe(t, bob)

	mint := createHookedMint(t, issuer)
	mintTo(t, issuer, mint, alice.pubkey(), 1_000)
	mintTo(t, issuer, mint, bob.pubkey(), 1_000)

	var wg sync.WaitGroup
	failures := make(chan int, 2*rounds)
	send := func(from *wallet, to solana.PublicKey) {
		defer wg.Done()
		resp, err := transfer(from.client, mint, to, 3)
		if err != nil {
			failures <- 0
			return
		}
		if resp.StatusCode != http.StatusOK {
			failures <- resp.StatusCode
		}
		_ = resp.Body.Close()
	}
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go send(alice, bob.pubkey())
		go send(bob, alice.pubkey())
	}
	wg.Wait()
	close(failures)

	for status := range failures {
		t.Errorf("transfer failed with status %d", status)
	}
	assert.Equal(t, uint64(1_000), tokenBalance(t, alice.client, alice.pubkey(), mint))
	assert.Equal(t, uint64(1_000), tokenBalance(t, alice.client, bob.pubkey(), mint))
}
