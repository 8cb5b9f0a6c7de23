package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/navarrastar/newsletter-signup/pkg/clients/beehiiv"
	"github.com/navarrastar/newsletter-signup/pkg/clients/hubspot"
)

// Config holds all application configuration values
type Config struct {
	// Server
	Environment string `env:"ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`

	// Providers. Credentials are checked per call, not at startup, so one
	// missing integration does not take the other down.
	BeehiivPublicationID string        `env:"BEEHIIV_PUBLICATION_ID"`
	BeehiivAPIKey        string        `env:"BEEHIIV_API_KEY"`
	BeehiivBaseURL       string        `env:"BEEHIIV_BASE_URL"`
	HubSpotAccessToken   string        `env:"HUBSPOT_ACCESS_TOKEN"`
	HubSpotBaseURL       string        `env:"HUBSPOT_BASE_URL"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// Rate limiting
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax           int           `env:"RATE_LIMIT_MAX" envDefault:"3"`
	RateLimitRedisAddr     string        `env:"RATE_LIMIT_REDIS_ADDR"`
	RateLimitRedisPassword string        `env:"RATE_LIMIT_REDIS_PASSWORD"`
	RateLimitRedisDB       int           `env:"RATE_LIMIT_REDIS_DB" envDefault:"0"`
	RateLimitRedisPrefix   string        `env:"RATE_LIMIT_REDIS_PREFIX" envDefault:"signup:ratelimit"`

	// Telemetry
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"newsletter-signup"`
}

// LoadConfig reads an optional .env file and then the environment
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine; real deployments set the environment directly.
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BeehiivBaseURL == "" {
		cfg.BeehiivBaseURL = beehiiv.DefaultBaseURL
	}
	if cfg.HubSpotBaseURL == "" {
		cfg.HubSpotBaseURL = hubspot.DefaultBaseURL
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", cfg.ProviderTimeout)
	}
	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("rate limit window and max must be positive")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
