package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/model"
)

// AuditWriter persists audit entries.  Writes must skip entries whose id
// is already stored.
type AuditWriter interface {
	InsertAuditEntries(ctx context.Context, entries []model.AuditEntry) error
}

// ErrMalformedMessage marks a delivery that can never be processed.
var ErrMalformedMessage = errors.New("malformed audit message")

// AuditConsumer drains the plan.audit queue into an AuditWriter.
type AuditConsumer struct {
	URL    string
	Writer AuditWriter
	Log    logrus.FieldLogger
	// RequeueDelay is waited before a failed write is handed back to the
	// broker.  Zero means one second.
	RequeueDelay time.Duration
}

// acknowledger is the part of amqp.Delivery that settles a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Run connects to RabbitMQ, declares the plan.audit queue and consumes it
// until ctx is cancelled.  Broker failures are retried with a capped
// doubling backoff.  A message that cannot be decoded is rejected without
// requeue so it cannot stall the queue; a failed write is requeued after
// RequeueDelay and stored on redelivery.
func (c *AuditConsumer) Run(ctx context.Context) error {
	log := c.logger()
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.WithError(err).Warnf("audit-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("audit-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	log := c.logger()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(AuditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(ctx, d, c.Handle(ctx, d.Body))
		}
	}
}

// settle acks a handled delivery, drops a malformed one and requeues
// everything else.  Redelivered entries keep their ids, so the writer
// skips whatever an earlier attempt already stored.
func (c *AuditConsumer) settle(ctx context.Context, d acknowledger, err error) {
	log := c.logger()
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrMalformedMessage):
		log.WithError(err).Error("audit-consumer: dropping malformed message")
		_ = d.Nack(false, false)
	default:
		log.WithError(err).Warn("audit-consumer: write failed; requeueing")
		delay := c.RequeueDelay
		if delay <= 0 {
			delay = time.Second
		}
		sleep(ctx, delay)
		_ = d.Nack(false, true)
	}
}

// Handle decodes one plan.audit message and writes its entries.
func (c *AuditConsumer) Handle(ctx context.Context, body []byte) error {
	var msg PlanAuditMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(msg.Entries) == 0 {
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Writer.InsertAuditEntries(wctx, msg.Entries); err != nil {
		return fmt.Errorf("write audit entries of event %s: %w", msg.EventID, err)
	}
	c.logger().WithFields(logrus.Fields{
		"event_id": msg.EventID,
		"version":  msg.Version,
		"entries":  len(msg.Entries),
	}).Debug("audit-consumer: entries stored")
	return nil
}

func (c *AuditConsumer) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
