package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

const nonceBytes = 32

// Challenge is a one-time message a wallet signs to prove key ownership.
type Challenge struct {
	PublicKey solana.PublicKey
	Nonce     string
	ExpiresAt time.Time
}

// Message returns the bytes the wallet must sign.
func (c Challenge) Message() []byte {
	return []byte(ChallengeMessage(c.Nonce))
}

// ChallengeMessage formats the sign-in message for nonce.
func ChallengeMessage(nonce string) string {
	return "subledger sign-in: " + nonce
}

type challengeKey struct {
	publicKey solana.PublicKey
	nonce     string
}

// ChallengeStore keeps issued challenges in memory until they are used or expire.
type ChallengeStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	challenges map[challengeKey]time.Time
}

// NewChallengeStore creates a store whose challenges live for ttl.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		ttl:        ttl,
		challenges: make(map[challengeKey]time.Time),
	}
}

// Issue creates a fresh challenge for publicKey.
func (s *ChallengeStore) Issue(publicKey solana.PublicKey, now time.Time) (Challenge, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return Challenge{}, fmt.Errorf("generate nonce: %w", err)
	}

	c := Challenge{
		PublicKey: publicKey,
		Nonce:     hex.EncodeToString(b),
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.challenges[challengeKey{publicKey: publicKey, nonce: c.Nonce}] = c.ExpiresAt
	return c, nil
}

// Consume removes the challenge and reports whether it was live.
// A challenge can be consumed once.
func (s *ChallengeStore) Consume(publicKey solana.PublicKey, nonce string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{publicKey: publicKey, nonce: nonce}
	expiresAt, ok := s.challenges[key]
	if !ok {
		return false
	}
	delete(s.challenges, key)
	return now.Before(expiresAt)
}

// Len returns the number of stored challenges.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

func (s *ChallengeStore) sweepLocked(now time.Time) {
	for key, expiresAt := range s.challenges {
		if !now.Before(expiresAt) {
			delete(s.challenges, key)
		}
	}
}
