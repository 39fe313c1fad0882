// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full server configuration. DatabaseURL empty selects the
// in-memory store; the catalog, identity, entitlement and payment gateway
// URLs are required. A missing notification URL disables notifications.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	DatabaseURL string `env:"DATABASE_URL"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT,default=10s"`

	CatalogURL    string `env:"CATALOG_URL,required"`
	CatalogAPIKey string `env:"CATALOG_API_KEY"`

	IdentityURL    string `env:"IDENTITY_URL,required"`
	IdentityAPIKey string `env:"IDENTITY_API_KEY"`

	EntitlementURL    string `env:"ENTITLEMENT_URL,required"`
	EntitlementAPIKey string `env:"ENTITLEMENT_API_KEY"`

	PaymentURL    string `env:"PAYMENT_URL,required"`
	PaymentAPIKey string `env:"PAYMENT_API_KEY"`

	NotificationURL    string `env:"NOTIFICATION_URL"`
	NotificationAPIKey string `env:"NOTIFICATION_API_KEY"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}
