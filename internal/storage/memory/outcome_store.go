package memory

import (
	"context"
	"sync"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu       sync.RWMutex
	outcomes []*domain.PipelineOutcome
}

// NewOutcomeStore creates a new in-memory outcome journal.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{}
}

// Record appends an outcome.
func (s *OutcomeStore) Record(_ context.Context, o *domain.PipelineOutcome) error {
	if o == nil || o.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oCopy := *o
	s.outcomes = append(s.outcomes, &oCopy)
	return nil
}

// ListByMint returns outcomes for a mint in insertion order.
func (s *OutcomeStore) ListByMint(_ context.Context, mintAddress string) ([]*domain.PipelineOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PipelineOutcome
	for _, o := range s.outcomes {
		if o.MintAddress == mintAddress {
			oCopy := *o
			result = append(result, &oCopy)
		}
	}
	return result, nil
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
