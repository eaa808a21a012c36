// Package config loads the offer service configuration from the environment.
package config

import (
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/takimoto3/appleapi-offer/signature"
)

// EnvProduction is the APP_ENV value that selects production mode.
const EnvProduction = "production"

type KeyConfig struct {
	KeyID          string `env:"SUBSCRIPTION_OFFERS_KEY_ID" env-required:"true" env-description:"App Store Connect subscription offer key ID"`
	PrivateKey     string `env:"SUBSCRIPTION_OFFERS_PRIVATE_KEY" env-description:"PEM-encoded EC private key"`
	PrivateKeyPath string `env:"SUBSCRIPTION_OFFERS_PRIVATE_KEY_PATH" env-description:"path to the .p8 private key file"`
}

type HTTPServConfig struct {
	ServerAddr      string        `env:"HTTP_SERVER_ADDRESS" env-default:":3000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" env-default:"16384"`
}

type OfferLimiterConfig struct {
	RPS   float64       `env:"OFFER_LIMITER_RPS" env-default:"0"`
	Burst int           `env:"OFFER_LIMITER_BURST" env-default:"1"`
	TTL   time.Duration `env:"OFFER_LIMITER_TTL" env-default:"1h"`
}

type Config struct {
	Env      string `env:"APP_ENV" env-default:"development"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Key      KeyConfig
	HTTPServ HTTPServConfig
	Limiter  OfferLimiterConfig
}

// Load reads the optional .env file at path, then binds the environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is like Load with the path taken from CONFIG_PATH or the
// -config flag, and panics on error.
func MustLoad() *Config {
	cfg, err := Load(getConfigPath())
	if err != nil {
		panic(err)
	}
	return cfg
}

func getConfigPath() string {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}

	var res string
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	return res
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Key.KeyID) == "" {
		return errors.New("SUBSCRIPTION_OFFERS_KEY_ID is empty")
	}
	hasText, hasPath := c.Key.PrivateKey != "", c.Key.PrivateKeyPath != ""
	switch {
	case !hasText && !hasPath:
		return errors.New("one of SUBSCRIPTION_OFFERS_PRIVATE_KEY or SUBSCRIPTION_OFFERS_PRIVATE_KEY_PATH is required")
	case hasText && hasPath:
		return errors.New("SUBSCRIPTION_OFFERS_PRIVATE_KEY and SUBSCRIPTION_OFFERS_PRIVATE_KEY_PATH are mutually exclusive")
	}
	if c.Limiter.RPS > 0 && c.Limiter.Burst < 1 {
		return fmt.Errorf("OFFER_LIMITER_BURST must be at least 1, got %d", c.Limiter.Burst)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// SigningKey parses the configured private key.
func (c *Config) SigningKey() (*ecdsa.PrivateKey, error) {
	if c.Key.PrivateKeyPath != "" {
		return signature.LoadPKCS8File(c.Key.PrivateKeyPath)
	}
	// Single-line env values often carry escaped newlines.
	text := strings.ReplaceAll(c.Key.PrivateKey, `\n`, "\n")
	key, err := signature.ParsePrivateKeyPEM([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("SUBSCRIPTION_OFFERS_PRIVATE_KEY: %w", err)
	}
	return key, nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}
