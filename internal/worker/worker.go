// Package worker enriches queued mints: it persists the mint, resolves and
// fetches its Metaplex metadata, persists that and publishes a search document.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/layout"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/search"
	"solana-nft-indexer/internal/solana"
	"solana-nft-indexer/internal/storage"
)

// Defaults.
const (
	DefaultMaxDecimals  uint8 = 2
	DefaultStageTimeout       = 10 * time.Second
)

// MetadataResolver derives the metadata account address of a mint.
type MetadataResolver interface {
	MetadataAddress(mint solana.PublicKey) (solana.DerivedAddress, error)
}

// DocumentIndexer receives search documents.
type DocumentIndexer interface {
	Index(ctx context.Context, doc *domain.SearchDocument) error
}

// Options configures a Worker.
type Options struct {
	Mints    storage.MintStore
	Metadata storage.MetadataStore
	// Outcomes journals every processed message. Optional.
	Outcomes storage.OutcomeStore

	Fetcher  solana.AccountFetcher
	Resolver MetadataResolver
	Indexer  DocumentIndexer

	// MetadataProgramID is the owner a metadata account must have.
	// Defaults to the Metaplex token metadata program.
	MetadataProgramID solana.PublicKey

	// MaxDecimals is the highest decimals value still treated as an NFT
	// candidate. Defaults to 2.
	MaxDecimals *uint8

	// StageTimeout bounds each I/O stage. Defaults to 10s.
	StageTimeout time.Duration

	Logger logrus.FieldLogger
}

// Worker runs the enrichment pipeline for one message at a time.
// It is safe for concurrent use when its dependencies are.
type Worker struct {
	mints           storage.MintStore
	metadata        storage.MetadataStore
	outcomes        storage.OutcomeStore
	fetcher         solana.AccountFetcher
	resolver        MetadataResolver
	indexer         DocumentIndexer
	metadataProgram string
	maxDecimals     uint8
	stageTimeout    time.Duration
	logger          logrus.FieldLogger
}

// New creates a Worker.
func New(opts Options) *Worker {
	maxDecimals := DefaultMaxDecimals
	if opts.MaxDecimals != nil {
		maxDecimals = *opts.MaxDecimals
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.MetadataProgramID.IsZero() {
		opts.MetadataProgramID = solana.MetadataProgramID
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Worker{
		mints:           opts.Mints,
		metadata:        opts.Metadata,
		outcomes:        opts.Outcomes,
		fetcher:         opts.Fetcher,
		resolver:        opts.Resolver,
		indexer:         opts.Indexer,
		metadataProgram: opts.MetadataProgramID.String(),
		maxDecimals:     maxDecimals,
		stageTimeout:    opts.StageTimeout,
		logger:          opts.Logger.WithField("component", "worker"),
	}
}

// Process runs msg through the pipeline and reports how it ended.
// Failures never propagate: they are logged and reflected in the outcome.
func (w *Worker) Process(ctx context.Context, msg *domain.QueueMessage) *domain.PipelineOutcome {
	start := time.Now()
	out := &domain.PipelineOutcome{
		MintAddress: msg.MintAddress,
		Stage:       domain.StageFilter,
	}
	logger := w.logger.WithField("mint", msg.MintAddress)

	w.run(ctx, msg, out, logger)

	out.DurationMs = time.Since(start).Milliseconds()
	out.ProcessedAt = time.Now().UTC()
	w.record(ctx, out, logger)
	return out
}

func (w *Worker) run(ctx context.Context, msg *domain.QueueMessage, out *domain.PipelineOutcome, logger logrus.FieldLogger) {
	if msg.Decimal > w.maxDecimals {
		out.Outcome = domain.OutcomeDroppedDecimals
		logger.WithField("decimals", msg.Decimal).Debug("not an nft candidate")
		return
	}

	out.Stage = domain.StageMintPersist
	err := w.stage(ctx, func(ctx context.Context) error {
		return w.mints.Insert(ctx, msg.MintRecord())
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		w.fail(out, err, logger)
		return
	}

	out.Stage = domain.StagePDAResolve
	mint, err := solana.ParsePublicKey(msg.MintAddress)
	if err != nil {
		w.fail(out, err, logger)
		return
	}
	derived, err := w.resolver.MetadataAddress(mint)
	if err != nil {
		w.fail(out, err, logger)
		return
	}
	metadataAddress := derived.Address.String()

	out.Stage = domain.StageMetadataFetch
	var info *solana.AccountInfo
	err = w.stage(ctx, func(ctx context.Context) error {
		var fetchErr error
		info, fetchErr = w.fetcher.GetAccountInfo(ctx, metadataAddress)
		return fetchErr
	})
	if err != nil {
		w.fail(out, err, logger)
		return
	}
	if info == nil || info.Owner != w.metadataProgram {
		out.Outcome = domain.OutcomeNoMetadata
		logger.Debug("no metadata account")
		return
	}

	meta, err := layout.DecodeMetadata(info.Data)
	if err != nil {
		out.Outcome = domain.OutcomeMetadataMalformed
		out.Error = err.Error()
		observability.RecordStageError(string(out.Stage), "decode")
		logger.WithError(err).WithField("metadata", metadataAddress).Warn("undecodable metadata account")
		return
	}
	if meta.Mint != mint {
		out.Outcome = domain.OutcomeMetadataMalformed
		out.Error = fmt.Sprintf("metadata names mint %s", meta.Mint)
		observability.RecordStageError(string(out.Stage), "decode")
		logger.WithField("metadata_mint", meta.Mint.String()).Warn("metadata account belongs to another mint")
		return
	}

	out.Stage = domain.StageMetadataPersist
	rec := meta.Record(metadataAddress)
	err = w.stage(ctx, func(ctx context.Context) error {
		return w.metadata.Insert(ctx, rec)
	})
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		logger.Debug("metadata already stored")
	case err != nil:
		w.fail(out, err, logger)
		return
	}

	out.Stage = domain.StageIndex
	err = w.stage(ctx, func(ctx context.Context) error {
		return w.indexer.Index(ctx, search.DocumentFor(rec))
	})
	if err != nil {
		// store-of-record already holds the row
		out.Outcome = domain.OutcomeIndexFailed
		out.Error = err.Error()
		observability.RecordStageError(string(out.Stage), errorKind(err))
		logger.WithError(err).Warn("index write failed")
		return
	}

	out.Stage = domain.StageDone
	out.Outcome = domain.OutcomeIndexed
	logger.WithField("name", rec.Name).Info("nft indexed")
}

// stage runs fn under the per-stage timeout.
func (w *Worker) stage(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, w.stageTimeout)
	defer cancel()
	return fn(ctx)
}

func (w *Worker) fail(out *domain.PipelineOutcome, err error, logger logrus.FieldLogger) {
	kind := errorKind(err)
	if kind == "timeout" {
		out.Outcome = domain.OutcomeTimeout
	} else {
		out.Outcome = domain.OutcomeFailed
	}
	out.Error = err.Error()
	observability.RecordStageError(string(out.Stage), kind)
	logger.WithError(err).WithField("stage", out.Stage).Error("skipping message")
}

func errorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

// record reports the outcome to metrics and, best effort, to the journal.
func (w *Worker) record(ctx context.Context, out *domain.PipelineOutcome, logger logrus.FieldLogger) {
	observability.RecordOutcome(string(out.Outcome), float64(out.DurationMs)/1000)

	if w.outcomes == nil {
		return
	}
	err := w.stage(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return w.outcomes.Record(ctx, out)
	})
	if err != nil {
		logger.WithError(err).Warn("journal outcome failed")
	}
}
