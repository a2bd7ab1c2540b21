package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct {
	issuedFor []solana.PublicKey
	err       error
}

func (m *mockAuthenticator) GenerateToken(_ context.Context, signer solana.PublicKey) (*Token, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.issuedFor = append(m.issuedFor, signer)
	return &Token{AccessToken: "access-" + signer.String()}, nil
}

func (m *mockAuthenticator) ValidateToken(_ context.Context, _ string) (string, error) {
	return "", nil
}

func newWallet(t *testing.T) solana.PrivateKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk
}

func sign(t *testing.T, wallet solana.PrivateKey, c Challenge) solana.Signature {
	t.Helper()
	sig, err := wallet.Sign(c.Message())
	require.NoError(t, err)
	return sig
}

func TestService_ChallengeAndVerify(t *testing.T) {
	ctx := context.Background()
	auth := &mockAuthenticator{}
	svc := NewService(NewChallengeStore(5*time.Minute), auth)
	wallet := newWallet(t)

	challenge, err := svc.Challenge(ctx, wallet.PublicKey())
	require.NoError(t, err)
	assert.Len(t, challenge.Nonce, 2*nonceBytes)

	token, err := svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sign(t, wallet, challenge))
	require.NoError(t, err)
	assert.Equal(t, "access-"+wallet.PublicKey().String(), token.AccessToken)
	assert.Equal(t, []solana.PublicKey{wallet.PublicKey()}, auth.issuedFor)
}

func TestService_Verify_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("challenge is single use", func(t *testing.T) {
		svc := NewService(NewChallengeStore(5*time.Minute), &mockAuthenticator{})
		wallet := newWallet(t)
		challenge, err := svc.Challenge(ctx, wallet.PublicKey())
		require.NoError(t, err)
		sig := sign(t, wallet, challenge)

		_, err = svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sig)
		require.NoError(t, err)
		_, err = svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sig)
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("signature by another key", func(t *testing.T) {
		svc := NewService(NewChallengeStore(5*time.Minute), &mockAuthenticator{})
		wallet, impostor := newWallet(t), newWallet(t)
		challenge, err := svc.Challenge(ctx, wallet.PublicKey())
		require.NoError(t, err)

		_, err = svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sign(t, impostor, challenge))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("challenge issued to another key", func(t *testing.T) {
		svc := NewService(NewChallengeStore(5*time.Minute), &mockAuthenticator{})
		wallet, other := newWallet(t), newWallet(t)
		challenge, err := svc.Challenge(ctx, wallet.PublicKey())
		require.NoError(t, err)

		_, err = svc.Verify(ctx, other.PublicKey(), challenge.Nonce, sign(t, other, challenge))
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("expired challenge", func(t *testing.T) {
		svc := NewService(NewChallengeStore(time.Minute), &mockAuthenticator{})
		start := time.Now()
		svc.now = func() time.Time { return start }
		wallet := newWallet(t)
		challenge, err := svc.Challenge(ctx, wallet.PublicKey())
		require.NoError(t, err)

		svc.now = func() time.Time { return start.Add(time.Minute) }
		_, err = svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sign(t, wallet, challenge))
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("authenticator failure", func(t *testing.T) {
		svc := NewService(NewChallengeStore(time.Minute), &mockAuthenticator{err: errors.New("boom")})
		wallet := newWallet(t)
		challenge, err := svc.Challenge(ctx, wallet.PublicKey())
		require.NoError(t, err)

		_, err = svc.Verify(ctx, wallet.PublicKey(), challenge.Nonce, sign(t, wallet, challenge))
		assert.Error(t, err)
	})
}

func TestChallengeStore_SweepsExpired(t *testing.T) {
	store := NewChallengeStore(time.Minute)
	key := newWallet(t).PublicKey()
	start := time.Now()

	_, err := store.Issue(key, start)
	require.NoError(t, err)
	_, err = store.Issue(key, start)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	_, err = store.Issue(key, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}
