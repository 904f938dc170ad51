package queue

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker for tests and single-binary runs.
type MemoryBroker struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool

	// failures are returned by the next Get calls, one per call.
	failures []error
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// Publish appends a copy of body.
func (b *MemoryBroker) Publish(_ context.Context, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.items = append(b.items, append([]byte(nil), body...))
	return nil
}

// Get pops the oldest payload.
func (b *MemoryBroker) Get(_ context.Context) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, false, ErrClosed
	}
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		return nil, false, err
	}
	if len(b.items) == 0 {
		return nil, false, nil
	}
	body := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return body, true, nil
}

// Len returns the queue depth.
func (b *MemoryBroker) Len(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items), nil
}

// Close marks the broker closed.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// FailNextGets makes the next len(errs) Get calls return the given errors.
func (b *MemoryBroker) FailNextGets(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, errs...)
}

var _ Broker = (*MemoryBroker)(nil)
