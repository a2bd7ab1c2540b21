package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextExpiry(t *testing.T) {
	const duration = 30 * 24 * time.Hour
	now := time.Unix(1_700_000_000, 0)
	durationSec := int64(duration / time.Second)

	tests := []struct {
		name     string
		current  int64
		expected int64
	}{
		{"never activated", 0, now.Unix() + durationSec},
		{"expired long ago", now.Unix() - 1000, now.Unix() + durationSec},
		{"expires exactly now", now.Unix(), now.Unix() + durationSec},
		{"renewed early keeps banked time", now.Unix() + 500, now.Unix() + 500 + durationSec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NextExpiry(tt.current, now, duration))
		})
	}
}

func TestSubscription_IsActive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		expiry int64
		active bool
	}{
		{"zero expiry", 0, false},
		{"past", now.Unix() - 1, false},
		{"boundary is expired", now.Unix(), false},
		{"future", now.Unix() + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{ExpiryTimestamp: tt.expiry}
			assert.Equal(t, tt.active, sub.IsActive(now))
		})
	}
}

func TestSubscription_ExpiresAt(t *testing.T) {
	sub := &Subscription{}
	assert.Nil(t, sub.ExpiresAt())

	sub.ExpiryTimestamp = 1_700_000_000
	expiresAt := sub.ExpiresAt()
	if assert.NotNil(t, expiresAt) {
		assert.Equal(t, int64(1_700_000_000), expiresAt.Unix())
	}
}
