package memory

import (
	"context"
	"sync"
	"time"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/storage"
)

// MintStore is an in-memory implementation of storage.MintStore.
type MintStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.MintRecord
}

// NewMintStore creates a new in-memory mint store.
func NewMintStore() *MintStore {
	return &MintStore{
		byMint: make(map[string]*domain.MintRecord),
	}
}

// Insert adds a mint. Returns ErrDuplicateKey if mint_address already exists.
func (s *MintStore) Insert(_ context.Context, m *domain.MintRecord) error {
	if m == nil || m.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMint[m.MintAddress]; exists {
		return storage.ErrDuplicateKey
	}

	mintCopy := *m
	if mintCopy.CreatedAt.IsZero() {
		mintCopy.CreatedAt = time.Now().UTC()
	}
	s.byMint[m.MintAddress] = &mintCopy
	return nil
}

// GetByMint retrieves a mint. Returns ErrNotFound if not exists.
func (s *MintStore) GetByMint(_ context.Context, mintAddress string) (*domain.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byMint[mintAddress]
	if !exists {
		return nil, storage.ErrNotFound
	}

	mintCopy := *m
	return &mintCopy, nil
}

// Count returns the number of stored mints.
func (s *MintStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byMint)
}

var _ storage.MintStore = (*MintStore)(nil)
