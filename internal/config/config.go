// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"solana-nft-indexer/internal/solana"
)

// Feed kinds.
const (
	FeedGeyser    = "geyser"
	FeedWebSocket = "websocket"
)

// Config holds settings for all binaries. Each binary validates the
// subset it needs.
type Config struct {
	FeedKind       string `env:"FEED_KIND" envDefault:"geyser"`
	GeyserEndpoint string `env:"GEYSER_ENDPOINT"`
	GeyserXToken   string `env:"GEYSER_X_TOKEN"`
	SolanaRPCURL   string `env:"SOLANA_RPC_URL"`
	SolanaWSURL    string `env:"SOLANA_WS_URL"`
	Commitment     string `env:"COMMITMENT" envDefault:"finalized"`

	AMQPURL      string        `env:"AMQP_URL"`
	QueueName    string        `env:"QUEUE_NAME" envDefault:"mint_data_message"`
	QueueTimeout time.Duration `env:"QUEUE_TIMEOUT" envDefault:"5s"`

	DatabaseURL   string `env:"DATABASE_URL"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	ElasticsearchURL   string `env:"ELASTICSEARCH_URL"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"nft_metadata"`

	Workers       int           `env:"WORKERS" envDefault:"1"`
	StageTimeout  time.Duration `env:"STAGE_TIMEOUT" envDefault:"10s"`
	EmptyBackoff  time.Duration `env:"EMPTY_BACKOFF" envDefault:"100ms"`
	ErrorBackoff  time.Duration `env:"ERROR_BACKOFF" envDefault:"2s"`
	MaxReconnects int           `env:"MAX_RECONNECTS" envDefault:"0"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env (if present) and then the environment.
// Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ValidateListener checks settings needed by the stream ingestor.
func (c *Config) ValidateListener() error {
	var errs []error
	switch c.FeedKind {
	case FeedGeyser:
		errs = append(errs, requireValue("GEYSER_ENDPOINT", c.GeyserEndpoint))
	case FeedWebSocket:
		errs = append(errs, requireValue("SOLANA_WS_URL", c.SolanaWSURL))
	default:
		errs = append(errs, fmt.Errorf("FEED_KIND must be %q or %q, got %q", FeedGeyser, FeedWebSocket, c.FeedKind))
	}
	errs = append(errs,
		requireValue("AMQP_URL", c.AMQPURL),
		requireValue("QUEUE_NAME", c.QueueName),
		c.validateCommitment(),
	)
	if c.MaxReconnects < 0 {
		errs = append(errs, fmt.Errorf("MAX_RECONNECTS must be >= 0"))
	}
	if c.QueueTimeout <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWorker checks settings needed by the enrichment worker.
func (c *Config) ValidateWorker() error {
	errs := []error{
		requireValue("SOLANA_RPC_URL", c.SolanaRPCURL),
		requireValue("AMQP_URL", c.AMQPURL),
		requireValue("QUEUE_NAME", c.QueueName),
		requireValue("DATABASE_URL", c.DatabaseURL),
		requireValue("ELASTICSEARCH_URL", c.ElasticsearchURL),
		requireValue("ELASTICSEARCH_INDEX", c.ElasticsearchIndex),
		c.validateCommitment(),
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("WORKERS must be >= 1"))
	}
	if c.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STAGE_TIMEOUT must be positive"))
	}
	if c.QueueTimeout <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateAPI checks settings needed by the query API.
func (c *Config) ValidateAPI() error {
	return errors.Join(
		requireValue("DATABASE_URL", c.DatabaseURL),
		requireValue("ELASTICSEARCH_URL", c.ElasticsearchURL),
		requireValue("ELASTICSEARCH_INDEX", c.ElasticsearchIndex),
		requireValue("API_ADDR", c.APIAddr),
	)
}

// SolanaCommitment returns the parsed commitment level.
func (c *Config) SolanaCommitment() solana.Commitment {
	return solana.ParseCommitment(c.Commitment)
}

func (c *Config) validateCommitment() error {
	switch solana.Commitment(c.Commitment) {
	case solana.CommitmentProcessed, solana.CommitmentConfirmed, solana.CommitmentFinalized:
		return nil
	default:
		return fmt.Errorf("COMMITMENT must be processed, confirmed or finalized, got %q", c.Commitment)
	}
}

func requireValue(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
