package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client     *RabbitMQ
	exchange   string
	routingKey string
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	p := &RabbitMQPublisher{client: client}
	if client != nil {
		p.exchange = client.topology.VarselExchange
		p.routingKey = client.topology.VarselRoutingKey
	}
	return p
}

// Publish sends msg keyed by its varsel id and waits for the broker confirm.
// A nack or a cancelled ctx is reported as an error; the message may still
// have reached the broker in the latter case.
func (p *RabbitMQPublisher) Publish(ctx context.Context, msg OpprettVarsel) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid varsel message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal varsel message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    msg.VarselID,
		Body:         payload,
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, p.routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish varsel %s: %w", msg.VarselID, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm of varsel %s: %w", msg.VarselID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked varsel %s", msg.VarselID)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
