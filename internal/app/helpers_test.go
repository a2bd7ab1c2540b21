//go:build integration

package app_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/bissquit/subledger/internal/config"
	"github.com/bissquit/subledger/internal/testutil"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58(config.DefaultProgramID)

type subscriptionData struct {
	Address         string  `json:"address"`
	Owner           string  `json:"owner"`
	ExpiryTimestamp int64   `json:"expiry_timestamp"`
	ExpiresAt       *string `json:"expires_at"`
	Active          bool    `json:"active"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// wallet is a signed-in test user.
type wallet struct {
	key    solana.PrivateKey
	client *testutil.Client
}

func (w *wallet) pubkey() solana.PublicKey {
	return w.key.PublicKey()
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	client := newTestClient(t)
	client.SignIn(t, key)
	return &wallet{key: key, client: client}
}

func airdrop(t *testing.T, w *wallet, lamports uint64) {
	t.Helper()
	resp, err := w.client.POST("/api/v1/accounts/"+w.pubkey().String()+"/airdrop", map[string]uint64{
		"lamports": lamports,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, testutil.ReadBody(t, resp))
	_ = resp.Body.Close()
}

func lamports(t *testing.T, client *testutil.Client, addr solana.PublicKey) uint64 {
	t.Helper()
	resp, err := client.GET("/api/v1/accounts/" + addr.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Lamports uint64 `json:"lamports"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Lamports
}

func initialize(t *testing.T, w *wallet) subscriptionData {
	t.Helper()
	resp, err := w.client.POST("/api/v1/subscriptions", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	var result struct {
		Data subscriptionData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func pay(w *wallet, subscription string) (*http.Response, error) {
	return w.client.POST("/api/v1/subscriptions/pay", map[string]string{
		"subscription":    subscription,
		"fee_destination": testTreasury.String(),
	})
}

func getSubscription(t *testing.T, client *testutil.Client, owner solana.PublicKey) subscriptionData {
	t.Helper()
	resp, err := client.GET("/api/v1/subscriptions/" + owner.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data subscriptionData `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// subscribe initializes and pays one period for w.
func subscribe(t *testing.T, w *wallet) subscriptionData {
	t.Helper()
	sub := initialize(t, w)
	resp, err := pay(w, sub.Address)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, testutil.ReadBody(t, resp))
	_ = resp.Body.Close()
	return getSubscription(t, w.client, w.pubkey())
}

// setExpiry rewrites a record's expiry directly, standing in for the passage of time.
func setExpiry(t *testing.T, owner solana.PublicKey, expiry int64) {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		`UPDATE subscriptions SET expiry_timestamp = $2 WHERE owner = $1`, owner.String(), expiry)
	require.NoError(t, err)
}

// createHookedMint creates a mint whose transfers are gated by the
// subscription program and initializes its extra account meta list.
func createHookedMint(t *testing.T, authority *wallet) string {
	t.Helper()
	resp, err := authority.client.POST("/api/v1/mints", map[string]interface{}{
		"decimals":              6,
		"transfer_hook_program": programID.String(),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	var result struct {
		Data struct {
			Address string `json:"address"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	mint := result.Data.Address

	resp, err = authority.client.POST("/api/v1/mints/"+mint+"/extra-account-metas", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))
	_ = resp.Body.Close()

	return mint
}

func mintTo(t *testing.T, authority *wallet, mint string, owner solana.PublicKey, amount uint64) {
	t.Helper()
	resp, err := authority.client.POST("/api/v1/mints/"+mint+"/mint-to", map[string]interface{}{
		"owner":  owner.String(),
		"amount": amount,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, testutil.ReadBody(t, resp))
	_ = resp.Body.Close()
}

func transfer(client *testutil.Client, mint string, destination solana.PublicKey, amount uint64) (*http.Response, error) {
	return client.POST("/api/v1/transfers", map[string]interface{}{
		"mint":              mint,
		"destination_owner": destination.String(),
		"amount":            amount,
		"decimals":          6,
	})
}

// tokenBalance returns the owner's balance, zero when no token account exists.
func tokenBalance(t *testing.T, client *testutil.Client, owner solana.PublicKey, mint string) uint64 {
	t.Helper()
	resp, err := client.GET("/api/v1/token-accounts/" + owner.String() + "/" + mint)
	require.NoError(t, err)
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return 0
	}
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Amount uint64 `json:"amount"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Amount
}

func requireError(t *testing.T, resp *http.Response, status int, message string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body errorBody
	testutil.DecodeJSON(t, resp, &body)
	if message != "" {
		require.Equal(t, message, body.Error.Message)
	}
}
