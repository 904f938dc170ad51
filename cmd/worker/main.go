// Package main runs the enrichment workers: it pops mint messages, persists
// mints and their Metaplex metadata, and publishes NFTs to the search index.
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

	"solana-nft-indexer/internal/config"
	"solana-nft-indexer/internal/logging"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/queue"
	"solana-nft-indexer/internal/search"
	"solana-nft-indexer/internal/solana"
	"solana-nft-indexer/internal/storage"
	chstore "solana-nft-indexer/internal/storage/clickhouse"
	"solana-nft-indexer/internal/storage/migrations"
	pgstore "solana-nft-indexer/internal/storage/postgres"
	"solana-nft-indexer/internal/worker"
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
	log := logger.WithField("service", "worker")

	if err := cfg.ValidateWorker(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go handleSignals(cancel, done, log)

	err = run(ctx, cfg, logger)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("worker stopped")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL,
		pgstore.WithMaxConns(int32(cfg.Workers)+2),
		pgstore.WithQueryLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return err
		}
		logger.WithField("applied", applied).Info("postgres migrations up to date")
	}

	outcomes, closeOutcomes, err := openOutcomes(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOutcomes()

	indexer, err := search.NewElasticIndexer(search.ElasticOptions{
		URL:       cfg.ElasticsearchURL,
		IndexName: cfg.ElasticsearchIndex,
	})
	if err != nil {
		return err
	}
	if err := indexer.EnsureIndex(ctx); err != nil {
		return err
	}

	rpc := solana.NewHTTPClient(cfg.SolanaRPCURL, solana.WithCommitment(cfg.SolanaCommitment()))
	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("solana rpc unreachable: %w", err)
	}
	logger.WithField("slot", slot).Info("solana rpc reachable")

	resolver, err := solana.NewPDAResolver(solana.MetadataProgramID, solana.DefaultPDACacheSize)
	if err != nil {
		return err
	}

	broker, err := queue.NewRabbitBroker(cfg.AMQPURL, cfg.QueueName, logger)
	if err != nil {
		return err
	}
	q := queue.New(broker)
	defer q.Close()

	poller := queue.NewPoller(q, queue.PollerOptions{
		EmptyBackoff: cfg.EmptyBackoff,
		ErrorBackoff: cfg.ErrorBackoff,
		PopTimeout:   cfg.QueueTimeout,
		Logger:       logger,
	})

	w := worker.New(worker.Options{
		Mints:        pgstore.NewMintStore(pool),
		Metadata:     pgstore.NewMetadataStore(pool),
		Outcomes:     outcomes,
		Fetcher:      rpc,
		Resolver:     resolver,
		Indexer:      indexer,
		StageTimeout: cfg.StageTimeout,
		Logger:       logger,
	})

	p := worker.NewPool(poller, w, worker.PoolOptions{Workers: cfg.Workers, Logger: logger})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observability.Serve(gctx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		if err := p.Run(gctx); err != nil {
			return err
		}
		return context.Canceled
	})
	return g.Wait()
}

// openOutcomes connects the optional ClickHouse outcome journal.
func openOutcomes(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (storage.OutcomeStore, func(), error) {
	if cfg.ClickhouseDSN == "" {
		logger.Info("CLICKHOUSE_DSN not set, pipeline outcomes are not journaled")
		return nil, func() {}, nil
	}

	var (
		conn *chstore.Conn
		err  error
	)
	if cfg.RunMigrations {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return chstore.NewOutcomeStore(conn), func() { conn.Close() }, nil
}

// handleSignals cancels on the first signal and exits on a second one
// or when graceful shutdown takes longer than 30s.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, log logrus.FieldLogger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("initiating graceful shutdown")
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Warn("second signal, forcing immediate shutdown")
		os.Exit(1)
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timed out after 30s, forcing exit")
		os.Exit(1)
	case <-done:
	}
}
