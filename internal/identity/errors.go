package identity

import "errors"

// Identity errors.
var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidToken      = errors.New("invalid token")
)
