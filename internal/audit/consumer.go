package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// StartConsumer connects to RabbitMQ, declares the audit.events queue, and
// writes every delivered event into the audit_log table. It runs a
// reconnect-with-backoff loop exactly like the teacher's
// queue.StartBookingConsumer, generalized from appending a log line to
// inserting a row, and only returns once ctx is cancelled.
func StartConsumer(ctx context.Context, url string, db *sql.DB, log zerolog.Logger) error {
	log = log.With().Str("component", "audit_consumer").Logger()
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("dial broker failed, retrying")
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, db, log); err != nil {
			log.Warn().Err(err).Msg("consume loop ended, reconnecting")
			_ = conn.Close()
			if !sleepOrDone(ctx, 2*time.Second) {
				return ctx.Err()
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, db *sql.DB, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("set QoS failed")
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := writeEvent(ctx, db, d.Body); err != nil {
				log.Warn().Err(err).Msg("handle audit event failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func writeEvent(ctx context.Context, db *sql.DB, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(writeCtx,
		`INSERT INTO audit_log (event_type, reservation_id, order_id, sku, quantity, user_id, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Type, nullIfEmpty(ev.ReservationID), nullIfEmpty(ev.OrderID), ev.SKU, ev.Quantity, nullIfEmpty(ev.UserID), ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit_log: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
