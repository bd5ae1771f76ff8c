package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.IsExpired(now))
	assert.Equal(t, time.Minute, s.TTL(now))
	assert.True(t, s.IsExpired(now.Add(time.Minute)))
	assert.Zero(t, s.TTL(now.Add(time.Hour)))
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "Unknown device", DeviceLabel(""))
	assert.Contains(t,
		DeviceLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"), "Chrome on ")
	assert.Equal(t, "Bot", DeviceLabel("Googlebot/2.1 (+http://www.google.com/bot.html)"))
}
