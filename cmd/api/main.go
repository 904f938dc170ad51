// Package main runs the read-only query API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-nft-indexer/internal/api"
	"solana-nft-indexer/internal/config"
	"solana-nft-indexer/internal/logging"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/search"
	"solana-nft-indexer/internal/storage"
	chstore "solana-nft-indexer/internal/storage/clickhouse"
	pgstore "solana-nft-indexer/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithField("service", "api")

	if err := cfg.ValidateAPI(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("api stopped")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.WithQueryLogger(logger))
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	indexer, err := search.NewElasticIndexer(search.ElasticOptions{
		URL:       cfg.ElasticsearchURL,
		IndexName: cfg.ElasticsearchIndex,
	})
	if err != nil {
		return err
	}

	var outcomes storage.OutcomeStore
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()
		outcomes = chstore.NewOutcomeStore(conn)
	}

	server := api.NewServer(api.Options{
		Addr:     cfg.APIAddr,
		Mints:    pgstore.NewMintStore(pool),
		Metadata: pgstore.NewMetadataStore(pool),
		Search:   indexer,
		Outcomes: outcomes,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observability.Serve(gctx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	// bound shutdown so a stuck request cannot hold the process
	go func() {
		<-ctx.Done()
		time.Sleep(30 * time.Second)
		logger.Warn("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	}()
	return g.Wait()
}
