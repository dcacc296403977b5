package queue

import (
	"context"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// redeliveryDelay holds back the nack of a message that already failed once,
// so a poison event does not spin the consumer.
const redeliveryDelay = 2 * time.Second

// RabbitMQConsumer delivers upstream events one at a time to a handler.
type RabbitMQConsumer struct {
	client          *RabbitMQ
	prefetch        int
	redeliveryDelay time.Duration
	logger          *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:          client,
		prefetch:        prefetch,
		redeliveryDelay: redeliveryDelay,
		logger:          logger,
	}
}

// Consume blocks until ctx is done. A lost channel or connection is retried
// with exponential backoff; a clean reattach resets it.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	tag := consumerTag(queue)
	retry := newBackoff()
	for {
		attached, err := c.consumeOnce(ctx, queue, tag, handler)
		if ctx.Err() != nil {
			return nil
		}
		if attached {
			retry.Reset()
		}

		c.logger.Warn("consumer detached, retrying",
			zap.String("queue", queue),
			zap.String("consumerTag", tag),
			zap.Duration("backoff", retry.Current()),
			zap.Error(err),
		)
		if retry.Wait(ctx) != nil {
			return nil
		}
	}
}

// consumeOnce reports whether it got as far as receiving deliveries.
func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue, tag string, handler MessageHandler) (bool, error) {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return false, err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return false, fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case d, ok := <-deliveries:
			if !ok {
				return true, fmt.Errorf("delivery channel for %q closed", queue)
			}
			if err := c.handleDelivery(ctx, queue, d, handler); err != nil {
				return true, err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, queue string, d amqp.Delivery, handler MessageHandler) error {
	msg := Message{Key: d.MessageId, Body: d.Body, Redelivered: d.Redelivered}

	handleErr := handler(ctx, msg)
	if handleErr == nil {
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery: %w", err)
		}
		return nil
	}

	c.logger.Warn("message not handled, requeueing",
		zap.String("queue", queue),
		zap.String("messageId", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
		zap.Error(handleErr),
	)

	if d.Redelivered && c.redeliveryDelay > 0 {
		timer := time.NewTimer(c.redeliveryDelay)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}

	if err := d.Nack(false, true); err != nil {
		return fmt.Errorf("handler failed and nack failed: %w", err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func consumerTag(queue string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "kandidatvarsel"
	}
	return fmt.Sprintf("%s@%s-%d", queue, host, os.Getpid())
}
