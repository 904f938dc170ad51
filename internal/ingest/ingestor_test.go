package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/layout"
	"solana-nft-indexer/internal/queue"
	"solana-nft-indexer/internal/solana"
	"solana-nft-indexer/internal/storage"
	"solana-nft-indexer/internal/storage/memory"
)

var (
	mintA = solana.MustPublicKey("So11111111111111111111111111111111111111112")
	mintB = solana.MetadataProgramID
)

// fakeStream replays envelopes, then runs onEnd and returns its error.
type fakeStream struct {
	envs   []*domain.Envelope
	endErr error
	onEnd  func()
	closed bool
}

func (s *fakeStream) Recv() (*domain.Envelope, error) {
	if len(s.envs) > 0 {
		env := s.envs[0]
		s.envs = s.envs[1:]
		return env, nil
	}
	if s.onEnd != nil {
		s.onEnd()
	}
	if s.endErr == nil {
		return nil, io.EOF
	}
	return nil, s.endErr
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type subscribeResult struct {
	stream *fakeStream
	err    error
}

// fakeFeed hands out scripted subscribe results in order.
type fakeFeed struct {
	mu        sync.Mutex
	results   []subscribeResult
	fromSlots []uint64
}

func (f *fakeFeed) Name() string {
	return "fake"
}

func (f *fakeFeed) Subscribe(_ context.Context, fromSlot uint64) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fromSlots = append(f.fromSlots, fromSlot)
	if len(f.results) == 0 {
		return nil, errors.New("feed unavailable")
	}
	r := f.results[0]
	f.results = f.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.stream, nil
}

type recordingProducer struct {
	msgs    []*domain.QueueMessage
	failFor map[string]error
}

func (p *recordingProducer) Push(_ context.Context, msg *domain.QueueMessage) error {
	if err, ok := p.failFor[msg.MintAddress]; ok {
		return err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

func mintEnvelope(address solana.PublicKey, owner solana.PublicKey, data []byte, slot uint64) *domain.Envelope {
	return &domain.Envelope{
		Kind: domain.EnvelopeAccount,
		Slot: slot,
		Account: &domain.RawAccountUpdate{
			Address: address.String(),
			Owner:   owner.String(),
			Data:    data,
			Slot:    slot,
		},
	}
}

func nftMintData() []byte {
	authority := solana.TokenProgramID
	return layout.EncodeMint(&layout.Mint{
		MintAuthority: &authority,
		Supply:        1,
		Decimals:      0,
		IsInitialized: true,
	})
}

func TestIngestor_InitialSubscribeFailureIsFatal(t *testing.T) {
	feed := &fakeFeed{results: []subscribeResult{{err: errors.New("connection refused")}}}
	ing := New(Options{Feed: feed, Producer: &recordingProducer{}, Logger: quietLogger(), NewBackOff: zeroBackOff})

	err := ing.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, feed.fromSlots, 1)
}

func TestIngestor_FiltersAndEnqueues(t *testing.T) {
	stream := &fakeStream{
		envs: []*domain.Envelope{
			{Kind: domain.EnvelopePing},
			{Kind: domain.EnvelopeSlot, Slot: 10},
			mintEnvelope(mintA, solana.MetadataProgramID, nftMintData(), 11),
			mintEnvelope(mintA, solana.TokenProgramID, make([]byte, 165), 12),
			mintEnvelope(mintA, solana.TokenProgramID, nftMintData(), 13),
		},
	}
	feed := &fakeFeed{results: []subscribeResult{{stream: stream}}}
	producer := &recordingProducer{}

	ing := New(Options{
		Feed:          feed,
		Producer:      producer,
		MaxReconnects: 1,
		NewBackOff:    zeroBackOff,
		Logger:        quietLogger(),
	})

	err := ing.Run(context.Background())
	require.Error(t, err, "resubscribe budget exhausted")
	assert.True(t, stream.closed)

	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	assert.Equal(t, mintA.String(), msg.MintAddress)
	assert.Equal(t, solana.TokenProgramID.String(), msg.Owner)
	assert.Equal(t, layout.MintSize, msg.DataLength)
	assert.Equal(t, solana.TokenProgramID.String(), msg.MintAuthority)
	assert.Equal(t, uint64(1), msg.Supply)
	assert.Equal(t, uint8(0), msg.Decimal)
	assert.True(t, msg.IsInitialized)
	assert.Nil(t, msg.FreezeAuthority)
}

func TestIngestor_EnqueueFailureContinues(t *testing.T) {
	stream := &fakeStream{
		envs: []*domain.Envelope{
			mintEnvelope(mintA, solana.TokenProgramID, nftMintData(), 1),
			mintEnvelope(mintB, solana.TokenProgramID, nftMintData(), 2),
		},
	}
	feed := &fakeFeed{results: []subscribeResult{{stream: stream}}}
	producer := &recordingProducer{failFor: map[string]error{mintA.String(): errors.New("broker down")}}

	ing := New(Options{Feed: feed, Producer: producer, MaxReconnects: 1, NewBackOff: zeroBackOff, Logger: quietLogger()})
	_ = ing.Run(context.Background())

	require.Len(t, producer.msgs, 1)
	assert.Equal(t, mintB.String(), producer.msgs[0].MintAddress)
}

func TestIngestor_ResubscribesFromLastSlot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &fakeStream{
		envs:   []*domain.Envelope{mintEnvelope(mintA, solana.TokenProgramID, nftMintData(), 100)},
		endErr: errors.New("stream reset"),
	}
	second := &fakeStream{
		envs:   []*domain.Envelope{mintEnvelope(mintB, solana.TokenProgramID, nftMintData(), 150)},
		endErr: context.Canceled,
		onEnd:  cancel,
	}
	feed := &fakeFeed{results: []subscribeResult{
		{stream: first},
		{err: errors.New("still down")},
		{stream: second},
	}}
	cursor := memory.NewCursorStore()
	q := queue.New(queue.NewMemoryBroker())

	ing := New(Options{
		Feed:       feed,
		Producer:   q,
		Cursor:     cursor,
		NewBackOff: zeroBackOff,
		Logger:     quietLogger(),
	})

	require.NoError(t, ing.Run(ctx))
	assert.Equal(t, []uint64{0, 100, 100}, feed.fromSlots)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err := cursor.GetCursor(context.Background(), "fake")
	require.NoError(t, err)
	assert.Equal(t, uint64(150), c.Slot)
}

func TestIngestor_ResumesFromStoredCursor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cursor := memory.NewCursorStore()
	require.NoError(t, cursor.SetCursor(ctx, &storage.IngestCursor{Stream: "fake", Slot: 42}))

	feed := &fakeFeed{results: []subscribeResult{
		{stream: &fakeStream{endErr: context.Canceled, onEnd: cancel}},
	}}

	ing := New(Options{Feed: feed, Producer: &recordingProducer{}, Cursor: cursor, Logger: quietLogger()})
	require.NoError(t, ing.Run(ctx))
	assert.Equal(t, []uint64{42}, feed.fromSlots)
}

func TestIngestor_MaxReconnects(t *testing.T) {
	feed := &fakeFeed{results: []subscribeResult{{stream: &fakeStream{}}}}

	ing := New(Options{
		Feed:          feed,
		Producer:      &recordingProducer{},
		MaxReconnects: 3,
		NewBackOff:    zeroBackOff,
		Logger:        quietLogger(),
	})

	err := ing.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, feed.fromSlots, 4, "initial subscribe plus three attempts")
}

// flappingFeed opens streams that fail on their first Recv.
type flappingFeed struct {
	mu        sync.Mutex
	fromSlots []uint64
}

func (f *flappingFeed) Name() string {
	return "fake"
}

func (f *flappingFeed) Subscribe(_ context.Context, fromSlot uint64) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fromSlots = append(f.fromSlots, fromSlot)
	return &fakeStream{endErr: errors.New("from_slot not available")}, nil
}

func (f *flappingFeed) subscribes() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.fromSlots...)
}

func TestIngestor_FlappingStreamBacksOffAndGivesUp(t *testing.T) {
	const wait = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	feed := &flappingFeed{}
	ing := New(Options{
		Feed:          feed,
		Producer:      &recordingProducer{},
		MaxReconnects: 3,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(wait)
		},
		Logger: quietLogger(),
	})

	start := time.Now()
	err := ing.Run(ctx)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_slot not available")
	assert.NoError(t, ctx.Err(), "gave up before the deadline")
	assert.Len(t, feed.subscribes(), 4, "initial subscribe plus three attempts")
	assert.GreaterOrEqual(t, elapsed, 3*wait)
}

func TestIngestor_FallsBackToLiveAfterFailedReplays(t *testing.T) {
	cursor := memory.NewCursorStore()
	require.NoError(t, cursor.SetCursor(context.Background(), &storage.IngestCursor{Stream: "fake", Slot: 42}))

	logger, hook := test.NewNullLogger()
	feed := &flappingFeed{}
	ing := New(Options{
		Feed:              feed,
		Producer:          &recordingProducer{},
		Cursor:            cursor,
		MaxReconnects:     4,
		LiveFallbackAfter: 2,
		NewBackOff:        zeroBackOff,
		Logger:            logger,
	})

	require.Error(t, ing.Run(context.Background()))
	assert.Equal(t, []uint64{42, 42, 42, 0, 0}, feed.subscribes())

	var gapLogged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["gap_from_slot"] == uint64(42) {
			gapLogged = true
		}
	}
	assert.True(t, gapLogged)
}

func TestIngestor_DeliveryResetsAttemptBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := &fakeFeed{results: []subscribeResult{
		{stream: &fakeStream{endErr: errors.New("reset")}},
		{err: errors.New("down")},
		{stream: &fakeStream{
			envs:   []*domain.Envelope{{Kind: domain.EnvelopeSlot, Slot: 7}},
			endErr: errors.New("reset"),
		}},
		{err: errors.New("down")},
		{stream: &fakeStream{
			envs:   []*domain.Envelope{{Kind: domain.EnvelopeSlot, Slot: 8}},
			endErr: context.Canceled,
			onEnd:  cancel,
		}},
	}}

	ing := New(Options{
		Feed:          feed,
		Producer:      &recordingProducer{},
		MaxReconnects: 2,
		NewBackOff:    zeroBackOff,
		Logger:        quietLogger(),
	})

	require.NoError(t, ing.Run(ctx))
	assert.Equal(t, []uint64{0, 0, 0, 7, 7}, feed.fromSlots)
}

// blockingProducer waits for its context on the first push.
type blockingProducer struct {
	mu    sync.Mutex
	calls int
	msgs  []*domain.QueueMessage
}

func (p *blockingProducer) Push(ctx context.Context, msg *domain.QueueMessage) error {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()

	if first {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	return nil
}

func TestIngestor_PushTimeoutSkipsStalledEnqueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := &fakeStream{
		envs: []*domain.Envelope{
			mintEnvelope(mintA, solana.TokenProgramID, nftMintData(), 1),
			mintEnvelope(mintB, solana.TokenProgramID, nftMintData(), 2),
		},
		endErr: context.Canceled,
		onEnd:  cancel,
	}
	feed := &fakeFeed{results: []subscribeResult{{stream: stream}}}
	producer := &blockingProducer{}

	ing := New(Options{
		Feed:        feed,
		Producer:    producer,
		PushTimeout: 50 * time.Millisecond,
		Logger:      quietLogger(),
	})

	start := time.Now()
	require.NoError(t, ing.Run(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, producer.msgs, 1)
	assert.Equal(t, mintB.String(), producer.msgs[0].MintAddress)
}

func TestMessageFor_FreezeAuthority(t *testing.T) {
	freeze := solana.MetadataProgramID
	mint := &layout.Mint{Supply: 5, Decimals: 2, FreezeAuthority: &freeze}
	acc := &domain.RawAccountUpdate{Address: "addr", Owner: "owner", Data: make([]byte, layout.MintSize)}

	msg := MessageFor(acc, mint)
	assert.Empty(t, msg.MintAuthority)
	require.NotNil(t, msg.FreezeAuthority)
	assert.Equal(t, freeze.String(), *msg.FreezeAuthority)
	assert.Nil(t, msg.MintRecord().MintAuthority)
}
