package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKeys(t *testing.T) {
	cfg := SmartpayConfig{PublicKey: "pk_test_abc123XYZ", SecretKey: "sk_live_9zZ"}
	assert.NoError(t, cfg.ValidateKeys())

	cfg.PublicKey = "sk_test_abc"
	assert.ErrorIs(t, cfg.ValidateKeys(), ErrInvalidPublicKey)

	cfg.PublicKey = "pk_test_abc"
	cfg.SecretKey = "sk_test_"
	assert.ErrorIs(t, cfg.ValidateKeys(), ErrInvalidSecretKey)

	cfg.SecretKey = "sk_prod_abc"
	assert.ErrorIs(t, cfg.ValidateKeys(), ErrInvalidSecretKey)
}

func TestWebhookConfigured(t *testing.T) {
	assert.False(t, SmartpayConfig{}.WebhookConfigured())
	assert.False(t, SmartpayConfig{WebhookID: "sub_1"}.WebhookConfigured())
	assert.True(t, SmartpayConfig{WebhookID: "sub_1", WebhookSecret: "whsec"}.WebhookConfigured())
}

func TestCheckoutConfigExpand(t *testing.T) {
	cfg := DefaultCheckoutConfig()
	success, cancel := cfg.Expand("https://shop.example/", 42)
	assert.Equal(t, "https://shop.example/shopping/smartpay/payment/complete/42", success)
	assert.Equal(t, "https://shop.example/shopping/smartpay/payment/cancel/42", cancel)

	// Absolute templates bypass the public URL.
	cfg = CheckoutConfig{
		SuccessURL: "https://front.example/done/{order_id}",
		CancelURL:  "https://front.example/cancel/{order_id}",
	}
	success, cancel = cfg.Expand("https://shop.example", 7)
	assert.Equal(t, "https://front.example/done/7", success)
	assert.Equal(t, "https://front.example/cancel/7", cancel)
}
