package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one delivery from the bus. Key is the AMQP message id.
type Message struct {
	Key         string
	Body        []byte
	Redelivered bool
}

// Publisher publishes outbound varsel messages. Publish returns only after the
// broker has confirmed the message.
type Publisher interface {
	Publish(ctx context.Context, msg OpprettVarsel) error
	Close() error
}

// Poller reads the status queue in bounded batches. Deliveries returned by
// Poll stay unacknowledged until Commit; Rewind hands them back for redelivery.
type Poller interface {
	Poll(ctx context.Context, maxWait time.Duration) ([]Message, error)
	Commit() error
	Rewind() error
	Close() error
}

// MessageHandler handles a consumed queue message. A non-nil error leaves the
// message unacknowledged so it is redelivered.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer consumes upstream event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// Topology names the exchanges and queues the service declares.
type Topology struct {
	VarselExchange   string
	VarselRoutingKey string

	StatusExchange string
	StatusQueue    string

	RapidExchange string
	// RapidQueues get one copy each of every upstream event.
	RapidQueues []string
}

func (t Topology) Validate() error {
	required := map[string]string{
		"varsel exchange":    t.VarselExchange,
		"varsel routing key": t.VarselRoutingKey,
		"status exchange":    t.StatusExchange,
		"status queue":       t.StatusQueue,
		"rapid exchange":     t.RapidExchange,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	seen := make(map[string]struct{}, len(t.RapidQueues))
	for _, q := range t.RapidQueues {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("rapid queue name is empty")
		}
		if q == t.StatusQueue {
			return fmt.Errorf("rapid queue %q collides with the status queue", q)
		}
		if _, ok := seen[q]; ok {
			return fmt.Errorf("rapid queue %q declared twice", q)
		}
		seen[q] = struct{}{}
	}
	return nil
}

// RapidQueueName returns the per-adapter upstream queue, e.g. kandidatvarsel.rapid.invitasjon.
func RapidQueueName(prefix string, adapter string) string {
	return fmt.Sprintf("%s.%s", strings.TrimSuffix(prefix, "."), strings.ToLower(adapter))
}
