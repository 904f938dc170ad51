package memory

import (
	"context"
	"errors"
	"testing"

	"solana-nft-indexer/internal/storage"
)

func TestCursorStore_SetAndGet(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()

	if _, err := store.GetCursor(ctx, "geyser"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetCursor(ctx, &storage.IngestCursor{Stream: "geyser", Slot: 100}); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	if err := store.SetCursor(ctx, &storage.IngestCursor{Stream: "geyser", Slot: 150}); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	c, err := store.GetCursor(ctx, "geyser")
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if c.Slot != 150 {
		t.Errorf("expected slot 150, got %d", c.Slot)
	}
	if c.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestCursorStore_NeverMovesBackwards(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()

	_ = store.SetCursor(ctx, &storage.IngestCursor{Stream: "geyser", Slot: 200})
	_ = store.SetCursor(ctx, &storage.IngestCursor{Stream: "geyser", Slot: 120})

	c, _ := store.GetCursor(ctx, "geyser")
	if c.Slot != 200 {
		t.Errorf("expected slot 200, got %d", c.Slot)
	}

	if err := store.SetCursor(ctx, &storage.IngestCursor{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
