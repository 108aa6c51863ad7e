package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	PublicURL   string

	LogLevel  string
	LogFormat string

	Smartpay SmartpayConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Email EmailConfig
	Redis RedisConfig
}

// SmartpayConfig carries the processor credentials and webhook identity.
// Loaded once at startup; the engine never mutates it.
type SmartpayConfig struct {
	APIBase       string
	CheckoutBase  string
	PublicKey     string
	SecretKey     string
	WebhookID     string
	WebhookSecret string
	Timeout       time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

var (
	publicKeyPattern = regexp.MustCompile(`^pk_(test|live)_[0-9a-zA-Z]+$`)
	secretKeyPattern = regexp.MustCompile(`^sk_(test|live)_[0-9a-zA-Z]+$`)

	ErrInvalidPublicKey = errors.New("invalid_public_key")
	ErrInvalidSecretKey = errors.New("invalid_secret_key")
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paygate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		PublicURL:   strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		Smartpay: SmartpayConfig{
			APIBase:       strings.TrimRight(getenv("SMARTPAY_API_PREFIX", "https://api.smartpay.co/v1"), "/"),
			CheckoutBase:  strings.TrimRight(getenv("SMARTPAY_CHECKOUT_URL", "https://checkout.smartpay.co"), "/"),
			PublicKey:     strings.TrimSpace(getenv("SMARTPAY_PUBLIC_KEY", "")),
			SecretKey:     strings.TrimSpace(getenv("SMARTPAY_SECRET_KEY", "")),
			WebhookID:     strings.TrimSpace(getenv("SMARTPAY_WEBHOOK_ID", "")),
			WebhookSecret: strings.TrimSpace(getenv("SMARTPAY_WEBHOOK_SECRET", "")),
			Timeout:       time.Duration(getenvInt64("SMARTPAY_TIMEOUT_SECONDS", 5)) * time.Second,
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paygate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
	}
}

// ValidateKeys checks the configured API key formats before any checkout is
// allowed to proceed.
func (c SmartpayConfig) ValidateKeys() error {
	if !publicKeyPattern.MatchString(c.PublicKey) {
		return ErrInvalidPublicKey
	}
	if !secretKeyPattern.MatchString(c.SecretKey) {
		return ErrInvalidSecretKey
	}
	return nil
}

// WebhookConfigured reports whether the inbound webhook identity is set.
func (c SmartpayConfig) WebhookConfigured() bool {
	return c.WebhookID != "" && c.WebhookSecret != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
