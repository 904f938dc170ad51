package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
)

// Queue serializes QueueMessages onto a Broker.
type Queue struct {
	broker Broker
}

// New creates a Queue over broker.
func New(broker Broker) *Queue {
	return &Queue{broker: broker}
}

// Push JSON-encodes msg and appends it to the queue.
func (q *Queue) Push(ctx context.Context, msg *domain.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}
	if err := q.broker.Publish(ctx, body); err != nil {
		observability.RecordQueueOp("push", err)
		return err
	}
	observability.RecordQueueOp("push", nil)
	return nil
}

// Pop removes the head of the queue. It returns nil, nil when the queue is
// empty and ErrMalformedMessage when the payload is not a QueueMessage; in
// that case the payload is already gone.
func (q *Queue) Pop(ctx context.Context) (*domain.QueueMessage, error) {
	body, ok, err := q.broker.Get(ctx)
	if err != nil {
		observability.RecordQueueOp("pop", err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	observability.RecordQueueOp("pop", nil)

	var msg domain.QueueMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.MintAddress == "" {
		return nil, fmt.Errorf("%w: missing mint_address", ErrMalformedMessage)
	}
	return &msg, nil
}

// Len returns the current queue depth.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.broker.Len(ctx)
}

// Close closes the underlying broker.
func (q *Queue) Close() error {
	return q.broker.Close()
}
