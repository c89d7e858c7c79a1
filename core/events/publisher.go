package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// TopicSyncCompleted carries the outcome of every sync run.
	TopicSyncCompleted = "sync.completed"
	// TopicReconciliationSaved carries every saved reconciliation snapshot.
	TopicReconciliationSaved = "reconciliation.saved"
)

// Publisher sends one event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// New returns an AMQP publisher, or Nop when cfg.URL is empty.
func New(cfg Config, logger *zap.Logger) Publisher {
	if cfg.URL == "" {
		return Nop{}
	}
	return NewAMQPPublisher(cfg, logger)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// AMQPPublisher publishes to RabbitMQ over one lazily dialed connection.
type AMQPPublisher struct {
	cfg    Config
	logger *zap.Logger
	dial   func(url string) (*amqp.Connection, error)

	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

// NewAMQPPublisher creates a publisher. No connection is made until the first Publish.
func NewAMQPPublisher(cfg Config, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{cfg: cfg, logger: logger, dial: amqp.Dial, declared: map[string]bool{}}
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	if p.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if !p.declared[topic] {
		if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("declare queue %s: %w", topic, err)
		}
		p.declared[topic] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", topic, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("Published event", zap.String("topic", topic), zap.Int("bytes", len(body)))
	return nil
}

// channel opens a channel on the current connection, dialing when needed. Callers hold mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
		p.declared = map[string]bool{}
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
}

// Close implements Publisher.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
	// Err, when set, is returned by every Publish.
	Err error
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Topic   string
	Payload any
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, topic string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, Recorded{Topic: topic, Payload: payload})
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Topics returns the topics published so far, in order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Topic)
	}
	return out
}
