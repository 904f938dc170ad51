// Package main runs the stream ingestor: it subscribes to SPL mint account
// updates and enqueues every decoded mint for the enrichment workers.
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
	"solana-nft-indexer/internal/geyser"
	"solana-nft-indexer/internal/ingest"
	"solana-nft-indexer/internal/logging"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/queue"
	"solana-nft-indexer/internal/solana"
	"solana-nft-indexer/internal/storage"
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
	log := logger.WithField("service", "listener")

	if err := cfg.ValidateListener(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go handleSignals(cancel, done, log)

	err = run(ctx, cfg, logger)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("listener stopped")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	broker, err := queue.NewRabbitBroker(cfg.AMQPURL, cfg.QueueName, logger)
	if err != nil {
		return err
	}
	q := queue.New(broker)
	defer q.Close()

	var cursor storage.CursorStore
	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.WithMaxConns(2))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		cursor = pgstore.NewCursorStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, resubscribes start from the live tip")
	}

	feed, closeFeed, err := newFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFeed()

	ingestor := ingest.New(ingest.Options{
		Feed:          feed,
		Producer:      q,
		Cursor:        cursor,
		PushTimeout:   cfg.QueueTimeout,
		MaxReconnects: cfg.MaxReconnects,
		Logger:        logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observability.Serve(gctx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		err := ingestor.Run(gctx)
		if err == nil {
			// stop the metrics server too
			return context.Canceled
		}
		return err
	})
	return g.Wait()
}

func newFeed(cfg *config.Config, logger logrus.FieldLogger) (ingest.Feed, func(), error) {
	switch cfg.FeedKind {
	case config.FeedWebSocket:
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Logger = logger
		return ingest.NewWebSocketFeed(cfg.SolanaWSURL, wsCfg, cfg.SolanaCommitment()), func() {}, nil
	default:
		feed, err := geyser.NewFeed(geyser.Options{
			Endpoint:   cfg.GeyserEndpoint,
			XToken:     cfg.GeyserXToken,
			Commitment: cfg.SolanaCommitment(),
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return feed, func() { feed.Close() }, nil
	}
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
