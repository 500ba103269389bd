package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors = %v, want none", errs)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("Env = %q, want %q", cfg.Env, DefaultEnv)
	}
	if cfg.TaxRateBPS != DefaultTaxRateBPS {
		t.Errorf("TaxRateBPS = %d, want %d", cfg.TaxRateBPS, DefaultTaxRateBPS)
	}
	if cfg.ShipStandardCents != DefaultShipStandardCents {
		t.Errorf("ShipStandardCents = %d, want %d", cfg.ShipStandardCents, DefaultShipStandardCents)
	}
	if cfg.IdempotencyTTLSecs != DefaultIdempotencyTTLSecs {
		t.Errorf("IdempotencyTTLSecs = %d, want %d", cfg.IdempotencyTTLSecs, DefaultIdempotencyTTLSecs)
	}
	if cfg.StripeEnabled {
		t.Error("StripeEnabled = true, want false by default")
	}
	if cfg.OrderPermalinkBase != DefaultOrderPermalinkBase {
		t.Errorf("OrderPermalinkBase = %q, want default", cfg.OrderPermalinkBase)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACP_PORT", "9090")
	t.Setenv("ACP_ENV", "production")
	t.Setenv("ACP_TAX_RATE_BPS", "825")
	t.Setenv("ACP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ACP_STRIPE_CONNECT_ACCOUNT_ID", "acct_123")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors = %v, want none", errs)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want production", cfg.Env)
	}
	if cfg.TaxRateBPS != 825 {
		t.Errorf("TaxRateBPS = %d, want 825", cfg.TaxRateBPS)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.StripeConnectAccountID != "acct_123" {
		t.Errorf("StripeConnectAccountID = %q, want acct_123", cfg.StripeConnectAccountID)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("ACP_PORT", "not-a-number")

	_, errs := Load("")
	found := false
	for _, err := range errs {
		if errors.Is(err, ErrInvalidPort) {
			found = true
		}
	}
	if !found {
		t.Errorf("Load() errors = %v, want ErrInvalidPort", errs)
	}
}

func TestLoadStripeValidation(t *testing.T) {
	t.Setenv("ACP_STRIPE_ENABLED", "true")

	_, errs := Load("")
	wantAPIKey, wantSecret := false, false
	for _, err := range errs {
		if errors.Is(err, ErrMissingStripeAPIKey) {
			wantAPIKey = true
		}
		if errors.Is(err, ErrMissingStripeWebhookSecret) {
			wantSecret = true
		}
	}
	if !wantAPIKey || !wantSecret {
		t.Errorf("Load() errors = %v, want missing Stripe key and webhook secret", errs)
	}

	t.Setenv("ACP_STRIPE_API_KEY", "sk_test_123")
	t.Setenv("ACP_STRIPE_WEBHOOK_SECRET", "whsec_123")
	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors = %v, want none with credentials set", errs)
	}
	if !cfg.StripeEnabled {
		t.Error("StripeEnabled = false, want true")
	}
}

func TestLoadInvalidTaxRate(t *testing.T) {
	t.Setenv("ACP_TAX_RATE_BPS", "20000")

	_, errs := Load("")
	found := false
	for _, err := range errs {
		if errors.Is(err, ErrInvalidTaxRate) {
			found = true
		}
	}
	if !found {
		t.Errorf("Load() errors = %v, want ErrInvalidTaxRate", errs)
	}
}

func TestLoadFromFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("port: 7070\nenv: staging\noutbound_webhook_url: https://agent.example.com/webhooks\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("Load() errors = %v, want none", errs)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070 from file", cfg.Port)
	}
	if cfg.OutboundWebhookURL != "https://agent.example.com/webhooks" {
		t.Errorf("OutboundWebhookURL = %q", cfg.OutboundWebhookURL)
	}

	// Environment variables take precedence over the file.
	t.Setenv("ACP_PORT", "7171")
	cfg, errs = Load(path)
	if len(errs) != 0 {
		t.Fatalf("Load() errors = %v, want none", errs)
	}
	if cfg.Port != 7171 {
		t.Errorf("Port = %d, want env override 7171", cfg.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, errs := Load("/nonexistent/config.yaml")
	if len(errs) == 0 {
		t.Error("Load() with missing file returned no errors")
	}
}
