package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const queueName = "audit.events"

// Publisher holds a lazily (re)established AMQP connection and channel,
// following the teacher's queue_publisher.PublishBookingConfirmed dial
// pattern but keeping the connection open across calls instead of dialing
// per publish, since the engine/checkout hot paths call Publish far more
// often than the teacher's single booking-confirmed event fires.
type Publisher struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log.With().Str("component", "audit_publisher").Logger()}
}

// Publish marshals ev and publishes it as a persistent message on the
// durable audit.events queue. Failures are logged and returned; per spec
// §7 audit publishing is best-effort and must never block or fail a
// reserve/confirm/cancel/expire call, so callers are expected to log and
// continue rather than surface this error to the HTTP client.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	ch, err := p.channel()
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", ev.Type).Msg("audit publish: channel unavailable")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.Warn().Err(err).Str("event_type", ev.Type).Msg("audit publish: publish failed")
		p.invalidate()
		return err
	}
	return nil
}

// channel returns the existing channel or (re)dials and declares the
// durable queue, idempotent the way the teacher's QueueDeclare call is.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *Publisher) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch = nil
	p.conn = nil
}

func (p *Publisher) Close() {
	p.invalidate()
}
