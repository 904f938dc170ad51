package storage

import (
	"context"

	"solana-nft-indexer/internal/domain"
)

// MintStore provides persistence for decoded mints.
type MintStore interface {
	// Insert adds a mint. Returns ErrDuplicateKey if mint_address exists.
	Insert(ctx context.Context, m *domain.MintRecord) error

	// GetByMint retrieves a mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mintAddress string) (*domain.MintRecord, error)
}

// MetadataStore provides persistence for decoded metadata.
// Rows do not require the mint row to exist.
type MetadataStore interface {
	// Insert adds metadata and its creators.
	// Returns ErrDuplicateKey if metadata for mint_address exists.
	Insert(ctx context.Context, m *domain.MetadataRecord) error

	// GetByMint retrieves metadata with creators. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mintAddress string) (*domain.MetadataRecord, error)
}

// OutcomeStore is an append-only journal of pipeline outcomes.
type OutcomeStore interface {
	// Record appends an outcome.
	Record(ctx context.Context, o *domain.PipelineOutcome) error

	// ListByMint returns outcomes for a mint, oldest first.
	ListByMint(ctx context.Context, mintAddress string) ([]*domain.PipelineOutcome, error)
}
