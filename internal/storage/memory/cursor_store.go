package memory

import (
	"context"
	"sync"
	"time"

	"solana-nft-indexer/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]storage.IngestCursor
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]storage.IngestCursor),
	}
}

// GetCursor returns the cursor for stream. Returns ErrNotFound if none saved.
func (s *CursorStore) GetCursor(_ context.Context, stream string) (*storage.IngestCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[stream]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// SetCursor saves the cursor unless it would move the slot backwards.
func (s *CursorStore) SetCursor(_ context.Context, cursor *storage.IngestCursor) error {
	if cursor == nil || cursor.Stream == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cursors[cursor.Stream]; ok && existing.Slot > cursor.Slot {
		return nil
	}

	c := *cursor
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	s.cursors[cursor.Stream] = c
	return nil
}

var _ storage.CursorStore = (*CursorStore)(nil)
