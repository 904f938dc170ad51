package memory

import (
	"context"
	"sync"
	"time"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/storage"
)

// MetadataStore is an in-memory implementation of storage.MetadataStore.
type MetadataStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.MetadataRecord
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		byMint: make(map[string]*domain.MetadataRecord),
	}
}

// Insert adds metadata. Returns ErrDuplicateKey if mint_address already exists.
func (s *MetadataStore) Insert(_ context.Context, m *domain.MetadataRecord) error {
	if m == nil || m.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMint[m.MintAddress]; exists {
		return storage.ErrDuplicateKey
	}

	metaCopy := copyMetadata(m)
	if metaCopy.CreatedAt.IsZero() {
		metaCopy.CreatedAt = time.Now().UTC()
	}
	s.byMint[m.MintAddress] = metaCopy
	return nil
}

// GetByMint retrieves metadata. Returns ErrNotFound if not exists.
func (s *MetadataStore) GetByMint(_ context.Context, mintAddress string) (*domain.MetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byMint[mintAddress]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyMetadata(m), nil
}

// Count returns the number of stored metadata rows.
func (s *MetadataStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byMint)
}

func copyMetadata(m *domain.MetadataRecord) *domain.MetadataRecord {
	c := *m
	if m.Creators != nil {
		c.Creators = append([]domain.Creator(nil), m.Creators...)
	}
	if m.Collection != nil {
		col := *m.Collection
		c.Collection = &col
	}
	return &c
}

var _ storage.MetadataStore = (*MetadataStore)(nil)
