// Package queue implements the durable FIFO channel between the ingestor and workers.
package queue

import (
	"context"
	"errors"
)

// DefaultQueueName is the queue mint messages travel on.
const DefaultQueueName = "mint_data_message"

// Queue errors.
var (
	// ErrMalformedMessage is returned when a popped payload cannot be decoded.
	ErrMalformedMessage = errors.New("malformed queue message")

	// ErrClosed is returned by operations on a closed broker.
	ErrClosed = errors.New("queue closed")
)

// Broker is a named FIFO store of opaque payloads.
// Get removes the payload before returning it; there is no acknowledgement.
type Broker interface {
	// Publish appends body to the tail of the queue.
	Publish(ctx context.Context, body []byte) error

	// Get removes and returns the head of the queue without blocking.
	// ok is false when the queue is empty.
	Get(ctx context.Context) (body []byte, ok bool, err error)

	// Len returns the number of queued payloads.
	Len(ctx context.Context) (int, error)

	// Close releases the broker connection.
	Close() error
}
