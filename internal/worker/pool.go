package worker

import (
	"context"
	"errors"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-nft-indexer/internal/domain"
)

// Source yields queued messages, blocking until one is available.
type Source interface {
	Next(ctx context.Context) (*domain.QueueMessage, error)
}

// Processor handles one message.
type Processor interface {
	Process(ctx context.Context, msg *domain.QueueMessage) *domain.PipelineOutcome
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Workers is the number of partitions. 1 or less processes inline.
	Workers int
	Logger  logrus.FieldLogger
}

// Pool pulls from a Source and processes messages. With more than one
// worker, messages are partitioned by mint address so each mint is
// handled by one goroutine in FIFO order.
type Pool struct {
	source    Source
	processor Processor
	workers   int
	logger    logrus.FieldLogger
}

// NewPool creates a Pool.
func NewPool(source Source, processor Processor, opts PoolOptions) *Pool {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pool{
		source:    source,
		processor: processor,
		workers:   workers,
		logger:    logger.WithField("component", "pool"),
	}
}

// Partition returns the partition index for a mint address.
func Partition(mintAddress string, n int) int {
	return int(xxhash.Sum64String(mintAddress) % uint64(n))
}

// Run processes messages until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.WithField("workers", p.workers).Info("worker pool started")
	defer p.logger.Info("worker pool stopped")

	if p.workers == 1 {
		return p.runInline(ctx)
	}
	return p.runPartitioned(ctx)
}

func (p *Pool) runInline(ctx context.Context) error {
	for {
		msg, err := p.source.Next(ctx)
		if err != nil {
			return ignoreCancel(ctx, err)
		}
		p.processor.Process(ctx, msg)
	}
}

func (p *Pool) runPartitioned(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// Unbuffered: a popped message waits in at most one place.
	partitions := make([]chan *domain.QueueMessage, p.workers)
	for i := range partitions {
		ch := make(chan *domain.QueueMessage)
		partitions[i] = ch

		g.Go(func() error {
			for msg := range ch {
				p.processor.Process(gctx, msg)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range partitions {
				close(ch)
			}
		}()

		for {
			msg, err := p.source.Next(gctx)
			if err != nil {
				return ignoreCancel(gctx, err)
			}

			select {
			case partitions[Partition(msg.MintAddress, p.workers)] <- msg:
			case <-gctx.Done():
				p.logger.WithField("mint", msg.MintAddress).Warn("dropping message on shutdown")
				return nil
			}
		}
	})

	return g.Wait()
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
