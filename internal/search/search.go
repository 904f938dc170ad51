// Package search publishes NFT documents to a full-text index and queries it.
package search

import (
	"context"
	"errors"

	"solana-nft-indexer/internal/domain"
)

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "nft_metadata"

// DefaultSearchSize is the number of hits returned by the query API.
const DefaultSearchSize = 20

// ErrInvalidDocument is returned when a document has no mint address.
var ErrInvalidDocument = errors.New("invalid search document")

// Indexer writes and queries search documents.
// Index is keyed by mint address, so rewriting a document is idempotent.
type Indexer interface {
	// EnsureIndex creates the index with its mapping if it does not exist.
	EnsureIndex(ctx context.Context) error

	// Index upserts doc and waits until it is visible to searches.
	Index(ctx context.Context, doc *domain.SearchDocument) error

	// Search runs a fuzzy match on display_name, best hits first.
	Search(ctx context.Context, query string, size int) ([]domain.SearchHit, error)
}

// DocumentFor builds the search document for stored metadata.
func DocumentFor(m *domain.MetadataRecord) *domain.SearchDocument {
	return &domain.SearchDocument{
		MintAddress: m.MintAddress,
		DisplayName: m.Name,
	}
}
