package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const closeDeadline = 5 * time.Second

// RabbitBroker is a Broker backed by a durable RabbitMQ queue.
// Publishing is persistent; Get uses basic.get with auto-ack, so a payload
// is gone from the broker as soon as it is returned.
type RabbitBroker struct {
	url    string
	queue  string
	logger logrus.FieldLogger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewRabbitBroker dials url and declares the durable queue.
// A failure here is returned so the caller can treat startup as fatal.
func NewRabbitBroker(url, queue string, logger logrus.FieldLogger) (*RabbitBroker, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	b := &RabbitBroker{
		url:    url,
		queue:  queue,
		logger: logger.WithField("component", "rabbitmq"),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connectLocked(); err != nil {
		return nil, err
	}
	return b, nil
}

// connectLocked opens a connection and channel and declares the queue.
func (b *RabbitBroker) connectLocked() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}

	b.conn = conn
	b.channel = ch
	b.logger.WithField("queue", b.queue).Info("connected")
	return nil
}

// channelLocked returns a live channel, reconnecting if the previous one closed.
func (b *RabbitBroker) channelLocked() (*amqp.Channel, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.channel != nil && !b.channel.IsClosed() && b.conn != nil && !b.conn.IsClosed() {
		return b.channel, nil
	}

	b.logger.Warn("channel closed, reconnecting")
	b.teardownLocked()
	if err := b.connectLocked(); err != nil {
		return nil, err
	}
	return b.channel, nil
}

func (b *RabbitBroker) teardownLocked() {
	if b.channel != nil {
		b.channel.Close()
		b.channel = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Publish sends body as a persistent message to the queue.
func (b *RabbitBroker) Publish(ctx context.Context, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.queue, err)
	}
	return nil
}

// Get pops one message with auto-ack. basic.get takes no context, so it
// runs under ctx via awaitGet; when ctx ends first the connection is
// dropped and the next call reconnects.
func (b *RabbitBroker) Get(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked()
	if err != nil {
		return nil, false, err
	}

	body, ok, err := awaitGet(ctx, func() ([]byte, bool, error) {
		msg, ok, err := ch.Get(b.queue, true)
		return msg.Body, ok, err
	})
	if err != nil {
		if ctx.Err() != nil {
			b.logger.WithError(err).Warn("get timed out, dropping connection")
			b.abandonLocked()
		}
		return nil, false, fmt.Errorf("get from %s: %w", b.queue, err)
	}
	return body, ok, nil
}

type getResult struct {
	body []byte
	ok   bool
	err  error
}

// awaitGet runs get in its own goroutine and returns ctx.Err() if ctx ends
// before get does. The goroutine is left to finish on its own.
func awaitGet(ctx context.Context, get func() ([]byte, bool, error)) ([]byte, bool, error) {
	done := make(chan getResult, 1)
	go func() {
		body, ok, err := get()
		done <- getResult{body: body, ok: ok, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil || !r.ok {
			return nil, false, r.err
		}
		return r.body, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// abandonLocked detaches the current connection and closes it in the
// background; a stalled broker would block a synchronous close.
func (b *RabbitBroker) abandonLocked() {
	conn := b.conn
	b.channel = nil
	b.conn = nil
	if conn == nil {
		return
	}
	go func() {
		_ = conn.CloseDeadline(time.Now().Add(closeDeadline))
	}()
}

// Len returns the ready message count reported by a passive declare.
func (b *RabbitBroker) Len(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked()
	if err != nil {
		return 0, err
	}

	q, err := ch.QueueDeclarePassive(b.queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("inspect %s: %w", b.queue, err)
	}
	return q.Messages, nil
}

// Close closes the channel and connection.
func (b *RabbitBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.teardownLocked()
	return nil
}

var _ Broker = (*RabbitBroker)(nil)
