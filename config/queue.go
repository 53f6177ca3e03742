package config

import (
	"fmt"
	"time"
)

// QueueConfig configures the Redis-backed job queue and its worker.
type QueueConfig struct {
	RedisURL        string        `yaml:"-"`
	Name            string        `yaml:"name"`
	Concurrency     int           `yaml:"concurrency"`
	StatusTTL       time.Duration `yaml:"statusTTL"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

func (q *QueueConfig) applyEnv() {
	setString(&q.RedisURL, "REDIS_URL")
	setString(&q.Name, "QUEUE_NAME", "RQ_QUEUE_NAME")
	setInt(&q.Concurrency, "WORKER_CONCURRENCY")
	setDuration(&q.StatusTTL, "QUEUE_STATUS_TTL")
	setDuration(&q.ShutdownTimeout, "WORKER_SHUTDOWN_TIMEOUT")
}

func (q QueueConfig) validate() error {
	if q.RedisURL == "" {
		return fmt.Errorf("queue: REDIS_URL is required")
	}
	if q.Name == "" {
		return fmt.Errorf("queue: QUEUE_NAME is required")
	}
	if q.Concurrency <= 0 {
		return fmt.Errorf("queue: WORKER_CONCURRENCY must be positive")
	}
	return nil
}
