// Package queue_publisher publishes plan messages to RabbitMQ.  Errors are
// logged and returned so callers can decide whether to retry; nothing here
// interrupts the main request flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/model"
	q "github.com/iliyamo/seating-plan/internal/queue"
)

// Publisher sends persistent JSON messages to durable queues.  Each publish
// opens its own connection, which keeps the publisher stateless and safe to
// share between goroutines.
type Publisher struct {
	URL string
	Log logrus.FieldLogger
}

// New returns a Publisher for the broker at url.
func New(url string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{URL: url, Log: log}
}

// PublishAudit sends the audit entries of one committed request to the
// plan.audit queue.
func (p *Publisher) PublishAudit(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	msg := q.PlanAuditMessage{
		EventID: entries[0].EventID,
		Entries: entries,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if v, ok := entries[0].Details["version"].(int64); ok {
		msg.Version = v
	}
	return p.publish(ctx, q.AuditQueueName, msg)
}

// PublishPlanCommitted sends a PlanCommittedEvent to the plan.committed queue.
func (p *Publisher) PublishPlanCommitted(ctx context.Context, ev q.PlanCommittedEvent) error {
	return p.publish(ctx, q.CommittedQueueName, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	log := p.Log.WithField("queue", queue)
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// idempotent; durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: marshal message failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}
