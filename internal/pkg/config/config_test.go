package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "stripe", cfg.Payments.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Payments.SignatureTolerance)
	assert.Equal(t, 5*time.Minute, cfg.Payments.LeaseTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Checkout.LockMaxAge)
	assert.Equal(t, 8*time.Second, cfg.Contracts.NotifyTimeout)
	assert.Equal(t, 5, cfg.Contracts.EmailMaxAttempts)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("PAYMENT_PROVIDER", "paypal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_PROVIDER")
}
