// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aristath/portfoliowidget/internal/clients/exchangerate"
	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY" env-default:"true"`
	Port      int    `yaml:"port" env:"PORT" env-default:"8010"`

	TargetCurrency  string        `yaml:"target_currency" env:"TARGET_CURRENCY" env-default:"EUR"`
	DustThreshold   float64       `yaml:"dust_threshold" env:"DUST_THRESHOLD" env-default:"1.0"`
	RefreshSchedule string        `yaml:"refresh_schedule" env:"REFRESH_SCHEDULE" env-default:"@every 15m"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	FXTimeout       time.Duration `yaml:"fx_timeout" env:"FX_TIMEOUT" env-default:"10s"`
	FXProviders     []string      `yaml:"fx_providers" env:"FX_PROVIDERS" env-separator:"," env-default:"exchangerate-api,frankfurter,open-er-api,currency-api,exchangerate-host"`

	// AuthFallback keeps a pass going when a source rejects its credentials
	AuthFallback bool `yaml:"auth_fallback" env:"AUTH_FALLBACK" env-default:"false"`
	HideValues   bool `yaml:"hide_values" env:"HIDE_VALUES" env-default:"false"`

	Bitvavo    BitvavoConfig    `yaml:"bitvavo"`
	Trading212 Trading212Config `yaml:"trading212"`
}

// BitvavoConfig holds the exchange source settings
type BitvavoConfig struct {
	APIKey       string `yaml:"api_key" env:"BITVAVO_API_KEY"`
	APISecret    string `yaml:"api_secret" env:"BITVAVO_API_SECRET"`
	BaseURL      string `yaml:"base_url" env:"BITVAVO_BASE_URL" env-default:"https://api.bitvavo.com/v2"`
	AccessWindow int    `yaml:"access_window" env:"BITVAVO_ACCESS_WINDOW" env-default:"60000"`
}

// Enabled reports whether credentials are configured
func (c BitvavoConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Trading212Config holds the brokerage source settings
type Trading212Config struct {
	APIKey           string `yaml:"api_key" env:"TRADING212_API_KEY"`
	BaseURL          string `yaml:"base_url" env:"TRADING212_BASE_URL" env-default:"https://live.trading212.com/api/v0/equity"`
	FallbackCurrency string `yaml:"fallback_currency" env:"TRADING212_FALLBACK_CURRENCY" env-default:"EUR"`
}

// Enabled reports whether an API key is configured
func (c Trading212Config) Enabled() bool {
	return c.APIKey != ""
}

// Load reads configuration from .env, an optional YAML file named by
// CONFIG_FILE, and the environment. Environment values win over the file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.TargetCurrency = strings.ToUpper(strings.TrimSpace(c.TargetCurrency))
	c.Trading212.FallbackCurrency = strings.ToUpper(strings.TrimSpace(c.Trading212.FallbackCurrency))

	providers := make([]string, 0, len(c.FXProviders))
	for _, id := range c.FXProviders {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			providers = append(providers, id)
		}
	}
	c.FXProviders = providers
}

// Validate checks the configuration for values no pass could work with
func (c *Config) Validate() error {
	var errs []error

	if !currency.LooksLikeCurrencyCode(c.TargetCurrency) {
		errs = append(errs, fmt.Errorf("TARGET_CURRENCY %q is not a currency code", c.TargetCurrency))
	}
	if c.DustThreshold < 0 {
		errs = append(errs, fmt.Errorf("DUST_THRESHOLD must not be negative, got %v", c.DustThreshold))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.HTTPTimeout <= 0 || c.FXTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT and FX_TIMEOUT must be positive"))
	}

	if len(c.FXProviders) == 0 {
		errs = append(errs, errors.New("FX_PROVIDERS must name at least one provider"))
	}
	for _, id := range c.FXProviders {
		if _, ok := exchangerate.Endpoints[id]; !ok {
			errs = append(errs, fmt.Errorf("unknown FX provider %q", id))
		}
	}

	if (c.Bitvavo.APIKey == "") != (c.Bitvavo.APISecret == "") {
		errs = append(errs, errors.New("BITVAVO_API_KEY and BITVAVO_API_SECRET must be set together"))
	}
	if c.Trading212.FallbackCurrency != "" && !currency.LooksLikeCurrencyCode(c.Trading212.FallbackCurrency) {
		errs = append(errs, fmt.Errorf("TRADING212_FALLBACK_CURRENCY %q is not a currency code", c.Trading212.FallbackCurrency))
	}

	return errors.Join(errs...)
}
