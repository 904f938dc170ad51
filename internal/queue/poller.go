package queue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
)

// Default poll backoffs.
const (
	DefaultEmptyBackoff = 100 * time.Millisecond
	DefaultErrorBackoff = 2 * time.Second
	DefaultPopTimeout   = 5 * time.Second
)

// PollerOptions contains configuration for creating a Poller.
type PollerOptions struct {
	EmptyBackoff time.Duration // Default: 100ms
	ErrorBackoff time.Duration // Default: 2s
	PopTimeout   time.Duration // Default: 5s
	Clock        Clock
	Logger       logrus.FieldLogger
}

// Poller turns the non-blocking Pop into a blocking receive with backoff.
type Poller struct {
	queue        *Queue
	emptyBackoff time.Duration
	errorBackoff time.Duration
	popTimeout   time.Duration
	clock        Clock
	logger       logrus.FieldLogger
}

// NewPoller creates a Poller over q.
func NewPoller(q *Queue, opts PollerOptions) *Poller {
	emptyBackoff := opts.EmptyBackoff
	if emptyBackoff <= 0 {
		emptyBackoff = DefaultEmptyBackoff
	}

	errorBackoff := opts.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = DefaultErrorBackoff
	}

	popTimeout := opts.PopTimeout
	if popTimeout <= 0 {
		popTimeout = DefaultPopTimeout
	}

	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Poller{
		queue:        q,
		emptyBackoff: emptyBackoff,
		errorBackoff: errorBackoff,
		popTimeout:   popTimeout,
		clock:        clock,
		logger:       logger.WithField("component", "poller"),
	}
}

// Next blocks until a message is available or ctx is done.
// Malformed payloads are logged and dropped. A pop that outlives the pop
// timeout counts as a failed pop and is retried after the error backoff.
func (p *Poller) Next(ctx context.Context) (*domain.QueueMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := p.pop(ctx)
		switch {
		case err == nil && msg != nil:
			return msg, nil

		case err == nil:
			if err := p.clock.Sleep(ctx, p.emptyBackoff); err != nil {
				return nil, err
			}

		case errors.Is(err, ErrMalformedMessage):
			observability.RecordMessageDropped("malformed")
			p.logger.WithError(err).Warn("dropping malformed message")

		case ctx.Err() != nil:
			return nil, ctx.Err()

		default:
			p.logger.WithError(err).WithField("backoff", p.errorBackoff).Error("queue pop failed")
			if err := p.clock.Sleep(ctx, p.errorBackoff); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Poller) pop(ctx context.Context) (*domain.QueueMessage, error) {
	popCtx, cancel := context.WithTimeout(ctx, p.popTimeout)
	defer cancel()
	return p.queue.Pop(popCtx)
}
