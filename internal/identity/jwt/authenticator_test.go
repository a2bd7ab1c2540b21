package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/subledger/internal/identity"
	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk.PublicKey()
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthenticator(Config{SecretKey: "test-secret", AccessTokenDuration: time.Hour})
	signer := newSigner(t)

	token, err := auth.GenerateToken(ctx, signer)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)

	got, err := auth.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signer.String(), got)
}

func TestAuthenticator_Rejects(t *testing.T) {
	ctx := context.Background()
	signer := newSigner(t)
	auth := NewAuthenticator(Config{SecretKey: "test-secret", AccessTokenDuration: time.Hour})

	t.Run("expired", func(t *testing.T) {
		issued := NewAuthenticator(Config{SecretKey: "test-secret", AccessTokenDuration: time.Minute})
		issued.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := issued.GenerateToken(ctx, signer)
		require.NoError(t, err)

		_, err = auth.ValidateToken(ctx, token.AccessToken)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewAuthenticator(Config{SecretKey: "other-secret", AccessTokenDuration: time.Hour})
		token, err := other.GenerateToken(ctx, signer)
		require.NoError(t, err)

		_, err = auth.ValidateToken(ctx, token.AccessToken)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   signer.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("subject is not a key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = auth.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := auth.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})
}
