// Package ingest consumes the upstream account feed, keeps SPL mint
// accounts and pushes them onto the work queue.
package ingest

import (
	"context"

	"solana-nft-indexer/internal/domain"
)

// Feed opens subscriptions to an upstream account feed.
type Feed interface {
	// Name identifies the feed; it keys the durable slot cursor.
	Name() string

	// Subscribe opens a stream of envelopes filtered to the token program.
	// fromSlot asks the feed to replay from that slot when it supports it;
	// zero means live only.
	Subscribe(ctx context.Context, fromSlot uint64) (Stream, error)
}

// Stream yields envelopes until it fails or its context is cancelled.
type Stream interface {
	// Recv blocks for the next envelope. Any error ends the stream.
	Recv() (*domain.Envelope, error)

	// Close releases the subscription.
	Close() error
}

// Producer receives decoded mints.
type Producer interface {
	Push(ctx context.Context, msg *domain.QueueMessage) error
}
