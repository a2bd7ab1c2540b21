// Package jwt implements signer tokens as HS256 JSON Web Tokens.
package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/subledger/internal/identity"
	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "subledger"

// Config contains JWT settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Authenticator implements identity.Authenticator.
type Authenticator struct {
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config, now: time.Now}
}

// GenerateToken issues an access token for signer.
func (a *Authenticator) GenerateToken(_ context.Context, signer solana.PublicKey) (*identity.Token, error) {
	now := a.now()
	expiresAt := now.Add(a.config.AccessTokenDuration)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   signer.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &identity.Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// ValidateToken returns the base58 signer of a valid token.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}

	if _, err := solana.PublicKeyFromBase58(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: bad subject", identity.ErrInvalidToken)
	}
	return claims.Subject, nil
}
