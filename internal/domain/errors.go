package domain

import "errors"

// Ledger errors shared by every program. Each one aborts the enclosing
// transaction; nothing is partially applied.
var (
	ErrAlreadyInitialized  = errors.New("account already initialized")
	ErrRecordNotFound      = errors.New("subscription record not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSubscriptionExpired = errors.New("subscription has expired, renew to transfer tokens")
	ErrMalformed           = errors.New("malformed account or instruction")
	ErrUnauthorized        = errors.New("missing required signature")
	ErrAccountNotFound     = errors.New("account not found")
)
