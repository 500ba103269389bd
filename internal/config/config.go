// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Stripe. When disabled the service charges through a local stub
	// gateway, which keeps development environments working without
	// provider credentials.
	StripeEnabled              bool   `koanf:"stripe_enabled"`
	StripeAPIKey               string `koanf:"stripe_api_key"`
	StripeWebhookSecret        string `koanf:"stripe_webhook_secret"`
	StripeWebhookToleranceSecs int    `koanf:"stripe_webhook_tolerance_seconds"`
	StripeConnectAccountID     string `koanf:"stripe_connect_account_id"`

	// Outbound order event webhook (empty URL disables delivery)
	OutboundWebhookURL    string `koanf:"outbound_webhook_url"`
	OutboundWebhookSecret string `koanf:"outbound_webhook_secret"`

	// Pricing
	TaxRateBPS        int64 `koanf:"tax_rate_bps"`
	ShipStandardCents int64 `koanf:"ship_standard_cents"`

	// Merchant links
	OrderPermalinkBase string `koanf:"order_permalink_base"`
	TermsOfUseURL      string `koanf:"terms_of_use_url"`
	PrivacyPolicyURL   string `koanf:"privacy_policy_url"`
	ReturnPolicyURL    string `koanf:"return_policy_url"`

	// Idempotency record validity window in seconds
	IdempotencyTTLSecs int `koanf:"idempotency_ttl_seconds"`

	// Redis. Empty means in-memory session and idempotency stores.
	RedisURL string `koanf:"redis_url"`
}

// Configuration validation errors.
var (
	ErrMissingStripeAPIKey        = errors.New("ACP_STRIPE_API_KEY is required when Stripe is enabled")
	ErrMissingStripeWebhookSecret = errors.New("ACP_STRIPE_WEBHOOK_SECRET is required when Stripe is enabled")
	ErrInvalidPort                = errors.New("port must be a valid integer")
	ErrInvalidTaxRate             = errors.New("ACP_TAX_RATE_BPS must be between 0 and 10000")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultTaxRateBPS          = 1000
	DefaultShipStandardCents   = 100
	DefaultIdempotencyTTLSecs  = 300
	DefaultWebhookToleranceSec = 300
	DefaultOrderPermalinkBase  = "https://merchant.example.com/orders"
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"ACP_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	taxRate, taxErr := getEnvIntOrDefault("ACP_TAX_RATE_BPS", k.Int("tax_rate_bps"), DefaultTaxRateBPS)
	if taxErr != nil {
		loadErrs = append(loadErrs, taxErr)
	}
	shipCents, shipErr := getEnvIntOrDefault("ACP_SHIP_STANDARD_CENTS", k.Int("ship_standard_cents"), DefaultShipStandardCents)
	if shipErr != nil {
		loadErrs = append(loadErrs, shipErr)
	}
	idemTTL, ttlErr := getEnvIntOrDefault("ACP_IDEMPOTENCY_TTL_SECONDS", k.Int("idempotency_ttl_seconds"), DefaultIdempotencyTTLSecs)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}
	tolerance, tolErr := getEnvIntOrDefault("ACP_STRIPE_WEBHOOK_TOLERANCE_SECONDS", k.Int("stripe_webhook_tolerance_seconds"), DefaultWebhookToleranceSec)
	if tolErr != nil {
		loadErrs = append(loadErrs, tolErr)
	}

	cfg := &Config{
		Port:                       port,
		Env:                        getEnvOrDefaultMulti([]string{"ACP_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		StripeEnabled:              getEnvBool("ACP_STRIPE_ENABLED", k, "stripe_enabled"),
		StripeAPIKey:               getEnvOrKoanf("ACP_STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret:        getEnvOrKoanf("ACP_STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		StripeWebhookToleranceSecs: tolerance,
		StripeConnectAccountID:     getEnvOrKoanf("ACP_STRIPE_CONNECT_ACCOUNT_ID", k, "stripe_connect_account_id"),
		OutboundWebhookURL:         getEnvOrKoanf("ACP_OUTBOUND_WEBHOOK_URL", k, "outbound_webhook_url"),
		OutboundWebhookSecret:      getEnvOrKoanf("ACP_OUTBOUND_WEBHOOK_SECRET", k, "outbound_webhook_secret"),
		TaxRateBPS:                 int64(taxRate),
		ShipStandardCents:          int64(shipCents),
		OrderPermalinkBase:         getEnvOrDefault("ACP_ORDER_PERMALINK_BASE", k.String("order_permalink_base"), DefaultOrderPermalinkBase),
		TermsOfUseURL:              getEnvOrKoanf("ACP_TERMS_OF_USE_URL", k, "terms_of_use_url"),
		PrivacyPolicyURL:           getEnvOrKoanf("ACP_PRIVACY_POLICY_URL", k, "privacy_policy_url"),
		ReturnPolicyURL:            getEnvOrKoanf("ACP_RETURN_POLICY_URL", k, "return_policy_url"),
		IdempotencyTTLSecs:         idemTTL,
		RedisURL:                   getEnvOrKoanf("ACP_REDIS_URL", k, "redis_url"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool if set, otherwise the koanf value.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.StripeEnabled {
		if c.StripeAPIKey == "" {
			errs = append(errs, ErrMissingStripeAPIKey)
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, ErrMissingStripeWebhookSecret)
		}
	}
	if c.TaxRateBPS < 0 || c.TaxRateBPS > 10000 {
		errs = append(errs, ErrInvalidTaxRate)
	}

	return errs
}
