package postgres

import (
	"context"
	"fmt"

	"solana-nft-indexer/internal/storage"
)

// CursorStore implements storage.CursorStore using the ingest_cursor table.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// GetCursor returns the cursor for stream. Returns ErrNotFound if none saved.
func (s *CursorStore) GetCursor(ctx context.Context, stream string) (*storage.IngestCursor, error) {
	var c storage.IngestCursor
	var slot int64

	err := s.pool.QueryRow(ctx, `
		SELECT stream, slot, updated_at
		FROM ingest_cursor
		WHERE stream = $1
	`, stream).Scan(&c.Stream, &slot, &c.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ingest cursor: %w", err)
	}

	c.Slot = uint64(slot)
	return &c, nil
}

// SetCursor upserts the cursor, keeping the greater slot.
func (s *CursorStore) SetCursor(ctx context.Context, cursor *storage.IngestCursor) error {
	if cursor == nil || cursor.Stream == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_cursor (stream, slot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (stream) DO UPDATE SET
			slot = GREATEST(ingest_cursor.slot, EXCLUDED.slot),
			updated_at = now()
	`, cursor.Stream, int64(cursor.Slot))
	if err != nil {
		return fmt.Errorf("set ingest cursor: %w", err)
	}
	return nil
}
