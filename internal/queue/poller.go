package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errBatchPending = errors.New("previous batch was neither committed nor rewound")

// RabbitMQPoller consumes the status queue on one long-lived channel and hands
// out deliveries in batches.
type RabbitMQPoller struct {
	client   *RabbitMQ
	queue    string
	maxBatch int
	logger   *zap.Logger

	mu         sync.Mutex
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	lastTag    uint64
	pending    bool
}

func NewRabbitMQPoller(client *RabbitMQ, maxBatch int, logger *zap.Logger) *RabbitMQPoller {
	if maxBatch < 1 {
		maxBatch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &RabbitMQPoller{client: client, maxBatch: maxBatch, logger: logger}
	if client != nil {
		p.queue = client.topology.StatusQueue
	}
	return p
}

// Poll waits up to maxWait for the first delivery, then drains whatever else
// is already buffered, up to the batch size. An empty result is not an error.
func (p *RabbitMQPoller) Poll(ctx context.Context, maxWait time.Duration) ([]Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending {
		return nil, errBatchPending
	}
	if err := p.ensureChannel(ctx); err != nil {
		return nil, err
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	var first amqp.Delivery
	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
		return nil, nil
	case d, ok := <-p.deliveries:
		if !ok {
			p.resetLocked()
			return nil, fmt.Errorf("status delivery channel closed")
		}
		first = d
	}

	batch := []amqp.Delivery{first}
drain:
	for len(batch) < p.maxBatch {
		select {
		case d, ok := <-p.deliveries:
			if !ok {
				break drain
			}
			batch = append(batch, d)
		default:
			break drain
		}
	}

	messages := make([]Message, 0, len(batch))
	for _, d := range batch {
		messages = append(messages, Message{Key: d.MessageId, Body: d.Body, Redelivered: d.Redelivered})
	}
	p.lastTag = batch[len(batch)-1].DeliveryTag
	p.pending = true

	return messages, nil
}

// Commit acknowledges every delivery returned by the last Poll.
func (p *RabbitMQPoller) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.pending {
		return nil
	}
	p.pending = false

	if err := p.ch.Ack(p.lastTag, true); err != nil {
		p.resetLocked()
		return fmt.Errorf("failed to ack status batch: %w", err)
	}
	return nil
}

// Rewind returns every delivery from the last Poll to the queue.
func (p *RabbitMQPoller) Rewind() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.pending {
		return nil
	}
	p.pending = false

	if err := p.ch.Nack(p.lastTag, true, true); err != nil {
		// Unacked deliveries are requeued by the broker once the channel goes away.
		p.resetLocked()
		return fmt.Errorf("failed to requeue status batch: %w", err)
	}
	return nil
}

func (p *RabbitMQPoller) Close() error {
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *RabbitMQPoller) ensureChannel(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("poller is not initialized")
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetLocked()

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.Qos(p.maxBatch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(p.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to consume queue %q: %w", p.queue, err)
	}

	p.ch = ch
	p.deliveries = deliveries
	p.logger.Info("status poller attached", zap.String("queue", p.queue))
	return nil
}

func (p *RabbitMQPoller) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	p.ch = nil
	p.deliveries = nil
	p.pending = false
}
