package storage

import (
	"context"
	"time"
)

// IngestCursor is the last slot the ingestor handled on a stream.
type IngestCursor struct {
	Stream    string // feed name, e.g. "geyser"
	Slot      uint64 // last processed Solana slot
	UpdatedAt time.Time
}

// CursorStore provides persistence for ingest position.
// This lets a resubscribe resume from the last seen slot instead of
// silently skipping updates published while disconnected.
type CursorStore interface {
	// GetCursor returns the cursor for stream.
	// Returns ErrNotFound if no cursor has been saved yet.
	GetCursor(ctx context.Context, stream string) (*IngestCursor, error)

	// SetCursor upserts the cursor. Slots never move backwards.
	SetCursor(ctx context.Context, cursor *IngestCursor) error
}
