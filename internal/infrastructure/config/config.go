package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/bookhub/internal/infrastructure/logx"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const Prefix = "BOOKHUB"

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	Store       string `envconfig:"STORE" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	BoltPath    string `envconfig:"BOLT_PATH" default:"bookhub.db"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	Provider Provider `envconfig:"PROVIDER"`
	// SyncInterval is how often provider links are re-checked; zero disables
	// the sync runner.
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"15m"`

	// CredEncKey seals provider credentials at rest (base64, 32 bytes).
	CredEncKey string `envconfig:"CRED_ENC_KEY"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"bookhub.events"`

	Zenchef   Zenchef   `envconfig:"ZENCHEF"`
	OpenTable OpenTable `envconfig:"OPENTABLE"`
	Resy      Resy      `envconfig:"RESY"`

	Log logx.Config `envconfig:"LOG"`
}

type Provider struct {
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"2"`
	// RateLimit is requests per second per provider; zero is unlimited.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"5"`
}

type Zenchef struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
}

type OpenTable struct {
	Token  string `envconfig:"TOKEN"`
	PQHash string `envconfig:"PQ_HASH"`
}

type Resy struct {
	APIKey           string `envconfig:"API_KEY"`
	AuthToken        string `envconfig:"AUTH_TOKEN"`
	ReservationTypes string `envconfig:"RESERVATION_TYPES"`
}

// FromEnv reads BOOKHUB_* variables. envFile, when set, is exported into the
// environment first; otherwise ./.env is used if present.
func FromEnv(envFile string) (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(envFile); path != "" {
		if err := exportEnvironment(path); err != nil {
			return cfg, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := exportEnvironmentIfExists(".env"); err != nil {
		return cfg, fmt.Errorf("failed to load default env file: %w", err)
	}

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreMemory:
	case StoreBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			return fmt.Errorf("%s_BOLT_PATH is required for the bolt store", Prefix)
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("%s_DATABASE_URL is required for the postgres store", Prefix)
		}
	default:
		return fmt.Errorf("%s_STORE must be one of memory, bolt, postgres (got %q)", Prefix, c.Store)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("%s_PROVIDER_TIMEOUT must be positive", Prefix)
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("%s_PROVIDER_MAX_RETRIES must not be negative", Prefix)
	}
	return nil
}

func exportEnvironmentIfExists(filepath string) error {
	info, err := os.Stat(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(filepath)
}

// exportEnvironment copies a dotenv file into the process environment.
// Variables already set win over the file.
func exportEnvironment(filepath string) error {
	v := viper.New()
	v.SetConfigFile(filepath)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
