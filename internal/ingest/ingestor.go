package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/layout"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/solana"
	"solana-nft-indexer/internal/storage"
)

// Skip reasons reported to metrics.
const (
	skipOwner  = "owner"
	skipLength = "length"
)

// Options configures an Ingestor.
type Options struct {
	Feed     Feed
	Producer Producer

	// Cursor persists the highest slot seen. Optional.
	Cursor storage.CursorStore
	// CursorFlushInterval throttles cursor writes. Defaults to 5s.
	CursorFlushInterval time.Duration

	// PushTimeout bounds a single enqueue. Defaults to 5s.
	PushTimeout time.Duration

	// MaxReconnects bounds consecutive failed resubscribe attempts.
	// An attempt fails when Subscribe errors or when the new stream ends
	// before delivering an envelope. Zero means unlimited.
	MaxReconnects int
	// LiveFallbackAfter is the number of consecutive failed attempts after
	// which a replay from the last slot is abandoned for a live
	// subscription. Defaults to 3.
	LiveFallbackAfter int
	// NewBackOff builds the resubscribe policy. Defaults to exponential
	// backoff from 500ms up to 30s without an elapsed-time limit.
	NewBackOff func() backoff.BackOff

	// TokenProgramID is the owner a mint account must have.
	// Defaults to the SPL token program.
	TokenProgramID solana.PublicKey

	Logger logrus.FieldLogger
}

// Ingestor runs one supervised subscription and enqueues every mint it sees.
type Ingestor struct {
	feed          Feed
	producer      Producer
	cursor        storage.CursorStore
	flushEvery    time.Duration
	pushTimeout   time.Duration
	maxReconnects int
	liveFallback  int
	newBackOff    func() backoff.BackOff
	tokenProgram  string
	logger        logrus.FieldLogger

	lastSlot    uint64
	flushedSlot uint64
	lastFlush   time.Time
}

// New creates an Ingestor.
func New(opts Options) *Ingestor {
	if opts.CursorFlushInterval <= 0 {
		opts.CursorFlushInterval = 5 * time.Second
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 5 * time.Second
	}
	if opts.LiveFallbackAfter <= 0 {
		opts.LiveFallbackAfter = 3
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	if opts.TokenProgramID.IsZero() {
		opts.TokenProgramID = solana.TokenProgramID
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Ingestor{
		feed:          opts.Feed,
		producer:      opts.Producer,
		cursor:        opts.Cursor,
		flushEvery:    opts.CursorFlushInterval,
		pushTimeout:   opts.PushTimeout,
		maxReconnects: opts.MaxReconnects,
		liveFallback:  opts.LiveFallbackAfter,
		newBackOff:    opts.NewBackOff,
		tokenProgram:  opts.TokenProgramID.String(),
		logger:        opts.Logger.WithField("feed", opts.Feed.Name()),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// outage tracks one run of consecutive failed subscriptions. It is
// discarded once a stream delivers an envelope.
type outage struct {
	policy   backoff.BackOff
	attempts int
	live     bool
	lastErr  error
}

// Run subscribes and consumes until ctx is cancelled.
// A failure of the first subscription is returned immediately. Later
// stream terminations are retried with backoff from the last seen slot.
func (i *Ingestor) Run(ctx context.Context) error {
	i.loadCursor(ctx)

	stream, err := i.feed.Subscribe(ctx, i.lastSlot)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", i.feed.Name(), err)
	}
	i.logger.WithField("from_slot", i.lastSlot).Info("subscribed")

	var out *outage
	for {
		delivered, err := i.consume(ctx, stream)
		_ = stream.Close()
		i.flushCursor(ctx, true)

		if ctx.Err() != nil {
			i.logger.Info("ingestor stopped")
			return nil
		}

		observability.RecordIngestError("stream")
		i.logger.WithError(err).WithFields(logrus.Fields{
			"last_slot": i.lastSlot,
			"delivered": delivered,
		}).Warn("stream terminated, resubscribing")

		if delivered || out == nil {
			out = &outage{policy: i.newBackOff()}
		} else {
			// the stream opened but died empty
			out.attempts++
			out.lastErr = err
		}

		stream, err = i.resubscribe(ctx, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("resubscribe %s: %w", i.feed.Name(), err)
		}
	}
}

// resubscribe waits out the outage policy between attempts until Subscribe
// succeeds, the attempt budget is spent or ctx is done.
func (i *Ingestor) resubscribe(ctx context.Context, out *outage) (Stream, error) {
	for {
		if i.maxReconnects > 0 && out.attempts >= i.maxReconnects {
			return nil, fmt.Errorf("gave up after %d attempts: %w", out.attempts, out.lastErr)
		}

		wait := out.policy.NextBackOff()
		if wait == backoff.Stop {
			return nil, fmt.Errorf("backoff exhausted after %d attempts", out.attempts)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}

		fromSlot := i.fromSlot(out)
		observability.RecordResubscribe()
		stream, err := i.feed.Subscribe(ctx, fromSlot)
		if err == nil {
			i.logger.WithFields(logrus.Fields{
				"from_slot": fromSlot,
				"attempt":   out.attempts + 1,
			}).Info("resubscribed")
			return stream, nil
		}

		out.attempts++
		out.lastErr = err
		i.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": out.attempts,
			"retry":   wait,
		}).Warn("resubscribe failed")
	}
}

// fromSlot picks the replay start for the next attempt. Once the outage
// has failed liveFallback times with a replay request, it switches to a
// live subscription and the slots in between are lost.
func (i *Ingestor) fromSlot(out *outage) uint64 {
	if out.live || i.lastSlot == 0 {
		return 0
	}
	if out.attempts < i.liveFallback {
		return i.lastSlot
	}
	out.live = true
	observability.RecordIngestError("slot_gap")
	i.logger.WithFields(logrus.Fields{
		"gap_from_slot": i.lastSlot,
		"attempts":      out.attempts,
	}).Error("replay keeps failing, falling back to live subscription")
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// consume reads the stream until it errors. delivered reports whether at
// least one envelope arrived.
func (i *Ingestor) consume(ctx context.Context, stream Stream) (delivered bool, err error) {
	for {
		env, err := stream.Recv()
		if err != nil {
			return delivered, err
		}
		delivered = true
		i.handle(ctx, env)
	}
}

// handle processes one envelope. Failures are logged and never stop the loop.
func (i *Ingestor) handle(ctx context.Context, env *domain.Envelope) {
	if env == nil {
		return
	}
	observability.RecordEnvelope(env.Kind.String())

	if env.Slot > i.lastSlot {
		i.lastSlot = env.Slot
		observability.UpdateHighestSlot(env.Slot)
	}

	if env.Kind == domain.EnvelopeAccount && env.Account != nil {
		i.handleAccount(ctx, env.Account)
	}

	i.flushCursor(ctx, false)
}

func (i *Ingestor) handleAccount(ctx context.Context, acc *domain.RawAccountUpdate) {
	if acc.Owner != i.tokenProgram {
		observability.RecordAccountSkipped(skipOwner)
		return
	}
	if len(acc.Data) != layout.MintSize {
		// token accounts and multisigs share the owner
		observability.RecordAccountSkipped(skipLength)
		return
	}

	mint, err := layout.DecodeMint(acc.Data)
	if err != nil {
		observability.RecordIngestError("decode")
		i.logger.WithError(err).WithField("account", acc.Address).Warn("decode mint failed")
		return
	}

	msg := MessageFor(acc, mint)
	pushCtx, cancel := context.WithTimeout(ctx, i.pushTimeout)
	err = i.producer.Push(pushCtx, msg)
	cancel()
	if err != nil {
		observability.RecordIngestError("enqueue")
		i.logger.WithError(err).WithField("mint", acc.Address).Error("enqueue mint failed")
		return
	}
	observability.RecordMintEnqueued()
	i.logger.WithFields(logrus.Fields{
		"mint":     acc.Address,
		"decimals": mint.Decimals,
		"slot":     acc.Slot,
	}).Debug("mint enqueued")
}

// MessageFor builds the queue payload for a decoded mint account.
// A missing mint authority is sent as an empty string.
func MessageFor(acc *domain.RawAccountUpdate, mint *layout.Mint) *domain.QueueMessage {
	msg := &domain.QueueMessage{
		MintAddress:   acc.Address,
		Owner:         acc.Owner,
		DataLength:    len(acc.Data),
		Supply:        mint.Supply,
		Decimal:       mint.Decimals,
		IsInitialized: mint.IsInitialized,
	}
	if mint.MintAuthority != nil {
		msg.MintAuthority = mint.MintAuthority.String()
	}
	if mint.FreezeAuthority != nil {
		freeze := mint.FreezeAuthority.String()
		msg.FreezeAuthority = &freeze
	}
	return msg
}

func (i *Ingestor) loadCursor(ctx context.Context) {
	if i.cursor == nil {
		return
	}
	c, err := i.cursor.GetCursor(ctx, i.feed.Name())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			i.logger.WithError(err).Warn("load ingest cursor failed, starting live")
		}
		return
	}
	i.lastSlot = c.Slot
	i.flushedSlot = c.Slot
}

func (i *Ingestor) flushCursor(ctx context.Context, force bool) {
	if i.cursor == nil || i.lastSlot <= i.flushedSlot {
		return
	}
	if !force && time.Since(i.lastFlush) < i.flushEvery {
		return
	}

	// ctx may already be cancelled on shutdown
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := i.cursor.SetCursor(writeCtx, &storage.IngestCursor{
		Stream: i.feed.Name(),
		Slot:   i.lastSlot,
	})
	i.lastFlush = time.Now()
	if err != nil {
		i.logger.WithError(err).Warn("save ingest cursor failed")
		return
	}
	i.flushedSlot = i.lastSlot
}
