package config

import "time"

// EngineConfig carries the plan engine tunables.
type EngineConfig struct {
	MaxOps            int           // PLAN_MAX_OPS, capped at 100
	LockTTL           time.Duration // PLAN_LOCK_TTL
	AuditRetries      int           // AUDIT_RETRIES
	AuditRetryBackoff time.Duration // AUDIT_RETRY_BACKOFF
}

// LoadEngineConfig reads the engine settings, falling back to defaults for
// unset or invalid values.
func LoadEngineConfig() EngineConfig {
	c := EngineConfig{
		MaxOps:            envInt("PLAN_MAX_OPS", 100),
		LockTTL:           envDur("PLAN_LOCK_TTL", 2*time.Minute),
		AuditRetries:      envInt("AUDIT_RETRIES", 5),
		AuditRetryBackoff: envDur("AUDIT_RETRY_BACKOFF", time.Second),
	}
	if c.MaxOps < 1 || c.MaxOps > 100 {
		c.MaxOps = 100
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
	if c.AuditRetries < 1 {
		c.AuditRetries = 1
	}
	return c
}

// QueueConfig configures the RabbitMQ hand-off.  An empty URL disables the
// broker: audit entries are then written directly by the server.
type QueueConfig struct {
	URL            string        // RABBITMQ_URL, falling back to AMQP_URL
	PublishCommits bool          // PUBLISH_PLAN_COMMITTED
	RequeueDelay   time.Duration // AUDIT_REQUEUE_DELAY: pause before a failed audit write is requeued
}

// LoadQueueConfig reads the broker settings.
func LoadQueueConfig() QueueConfig {
	url := getenv("RABBITMQ_URL", "")
	if url == "" {
		url = getenv("AMQP_URL", "")
	}
	return QueueConfig{
		URL:            url,
		PublishCommits: envBool("PUBLISH_PLAN_COMMITTED", url != ""),
		RequeueDelay:   envDur("AUDIT_REQUEUE_DELAY", 2*time.Second),
	}
}
