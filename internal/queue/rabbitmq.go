package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const connectTimeout = 15 * time.Second

// RabbitMQ owns one AMQP connection. The topology is declared once per
// connection, so a reconnect redeclares it before the first new channel is
// handed out.
type RabbitMQ struct {
	url      string
	name     string
	topology Topology

	mu       sync.RWMutex
	dialMu   sync.Mutex
	conn     *amqp.Connection
	declared bool
}

// NewRabbitMQ connects and declares topology. name shows up as the connection
// name in the broker management UI.
func NewRabbitMQ(ctx context.Context, url string, name string, topology Topology) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rabbitmq topology: %w", err)
	}

	r := &RabbitMQ{url: url, name: name, topology: topology}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ch, err := r.channel(ctx)
	if err != nil {
		return nil, err
	}
	_ = ch.Close()

	return r, nil
}

// Ping reports whether the connection is currently open.
func (r *RabbitMQ) Ping() error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection %q is closed", r.name)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// channel opens a fresh channel, dialing again first if the connection is gone.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	for attempt := 0; ; attempt++ {
		conn, err := r.connection(ctx)
		if err != nil {
			return nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			// the connection died between the check and the call
			if attempt == 0 && conn.IsClosed() {
				continue
			}
			return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}

		if err := r.declareOnce(ch); err != nil {
			_ = ch.Close()
			return nil, err
		}
		return ch, nil
	}
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	r.mu.RLock()
	conn = r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	b := newBackoff()
	for {
		conn, err := amqp.DialConfig(r.url, amqp.Config{
			Properties: amqp.Table{"connection_name": r.name},
			Heartbeat:  10 * time.Second,
			Locale:     "en_US",
		})
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()
			return conn, nil
		}

		if waitErr := b.Wait(ctx); waitErr != nil {
			return nil, fmt.Errorf("rabbitmq connect %q canceled after %w: %w", r.name, err, waitErr)
		}
	}
}

func (r *RabbitMQ) declareOnce(ch *amqp.Channel) error {
	r.mu.RLock()
	declared := r.declared
	r.mu.RUnlock()
	if declared {
		return nil
	}

	if err := declareTopology(ch, r.topology); err != nil {
		return err
	}

	r.mu.Lock()
	r.declared = true
	r.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel, t Topology) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{t.VarselExchange, amqp.ExchangeTopic},
		{t.StatusExchange, amqp.ExchangeTopic},
		{t.RapidExchange, amqp.ExchangeFanout},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", ex.name, err)
		}
	}

	bindings := make([]binding, 0, len(t.RapidQueues)+1)
	bindings = append(bindings, binding{queue: t.StatusQueue, key: "#", exchange: t.StatusExchange})
	for _, q := range t.RapidQueues {
		bindings = append(bindings, binding{queue: q, exchange: t.RapidExchange})
	}
	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q to %q: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

type binding struct {
	queue    string
	key      string
	exchange string
}
