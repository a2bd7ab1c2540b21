// Package identity authenticates wallet signers.
//
// A client asks for a challenge, signs it with its ed25519 key and exchanges
// the signature for a short-lived bearer token whose subject is the public key.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Authenticator issues and validates signer tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, signer solana.PublicKey) (*Token, error)
	ValidateToken(ctx context.Context, token string) (string, error)
}

// Service implements signer authentication.
type Service struct {
	challenges *ChallengeStore
	auth       Authenticator
	now        func() time.Time
}

// NewService creates a new identity service.
func NewService(challenges *ChallengeStore, auth Authenticator) *Service {
	return &Service{
		challenges: challenges,
		auth:       auth,
		now:        time.Now,
	}
}

// Challenge issues a sign-in challenge for publicKey.
func (s *Service) Challenge(_ context.Context, publicKey solana.PublicKey) (Challenge, error) {
	return s.challenges.Issue(publicKey, s.now())
}

// Verify checks the signature over a previously issued challenge and issues a token.
func (s *Service) Verify(ctx context.Context, publicKey solana.PublicKey, nonce string, signature solana.Signature) (*Token, error) {
	if !s.challenges.Consume(publicKey, nonce, s.now()) {
		return nil, ErrChallengeNotFound
	}
	if !signature.Verify(publicKey, []byte(ChallengeMessage(nonce))) {
		return nil, ErrInvalidSignature
	}

	token, err := s.auth.GenerateToken(ctx, publicKey)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken returns the signer named by a valid token.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	return s.auth.ValidateToken(ctx, token)
}
