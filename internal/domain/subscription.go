package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Subscription is the per-owner record stored at the owner's derived address.
// ExpiryTimestamp is unix seconds; zero means the subscription was never paid.
type Subscription struct {
	Address         solana.PublicKey
	Owner           solana.PublicKey
	ExpiryTimestamp int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether transfers are allowed at now.
// The check is strict: a record expiring exactly at now is expired.
func (s *Subscription) IsActive(now time.Time) bool {
	return now.Unix() < s.ExpiryTimestamp
}

// ExpiresAt returns the expiry as time, or nil if never activated.
func (s *Subscription) ExpiresAt() *time.Time {
	if s.ExpiryTimestamp == 0 {
		return nil
	}
	t := time.Unix(s.ExpiryTimestamp, 0).UTC()
	return &t
}

// NextExpiry computes the expiry after one payment made at now.
// Paying early extends from the current expiry so banked time is kept,
// paying late restarts the period from now.
func NextExpiry(current int64, now time.Time, duration time.Duration) int64 {
	base := now.Unix()
	if current > base {
		base = current
	}
	return base + int64(duration/time.Second)
}

// PaymentEvent describes one fee payment. It is returned to the caller
// and logged but not persisted.
type PaymentEvent struct {
	Signature      string
	Payer          solana.PublicKey
	FeeDestination solana.PublicKey
	Amount         uint64
	PreviousExpiry int64
	NewExpiry      int64
	PaidAt         time.Time
}
