package config

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CheckoutConfig holds the redirect URL templates handed to the processor
// when a checkout session is created. The `{order_id}` placeholder is
// expanded per order; relative paths are resolved against PUBLIC_URL.
type CheckoutConfig struct {
	SuccessURL string `mapstructure:"successUrl"`
	CancelURL  string `mapstructure:"cancelUrl"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		SuccessURL: "/shopping/smartpay/payment/complete/{order_id}",
		CancelURL:  "/shopping/smartpay/payment/cancel/{order_id}",
	}
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

func NewCheckoutConfigHolder() (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/paygate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCheckoutConfig()
		v.SetDefault("checkout.successUrl", defaults.SuccessURL)
		v.SetDefault("checkout.cancelUrl", defaults.CancelURL)
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Printf("[checkout-config] reload failed: %v", err)
			return
		}
		if err := validateCheckoutConfig(updated); err != nil {
			log.Printf("[checkout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[checkout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCheckoutConfigHolder wraps a fixed config without file watching.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	return h.current.Load().(CheckoutConfig)
}

// Expand resolves the URL templates for a concrete order.
func (c CheckoutConfig) Expand(publicURL string, orderID int64) (successURL, cancelURL string) {
	return expandURL(c.SuccessURL, publicURL, orderID), expandURL(c.CancelURL, publicURL, orderID)
}

func expandURL(tmpl, publicURL string, orderID int64) string {
	out := strings.ReplaceAll(tmpl, "{order_id}", strconv.FormatInt(orderID, 10))
	if strings.HasPrefix(out, "/") {
		out = strings.TrimRight(publicURL, "/") + out
	}
	return out
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if strings.TrimSpace(cfg.SuccessURL) == "" {
		return errors.New("checkout.successUrl cannot be empty")
	}
	if strings.TrimSpace(cfg.CancelURL) == "" {
		return errors.New("checkout.cancelUrl cannot be empty")
	}
	return nil
}
