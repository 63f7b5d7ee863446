package messagequeue

import (
	"context"
	"time"

	"github.com/agentmesh/engine/pkg/concurrency"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/resilience"
)

// ResilientQueueConfig configures the resilient queue wrapper's circuit
// breaker, retry, and bulkhead behavior around StoreBusy conditions.
type ResilientQueueConfig struct {
	CircuitBreakerEnabled   bool          `env:"MSG_CB_ENABLED" env-default:"true"`
	CircuitBreakerThreshold int64         `env:"MSG_CB_THRESHOLD" env-default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"MSG_CB_TIMEOUT" env-default:"30s"`

	RetryEnabled     bool          `env:"MSG_RETRY_ENABLED" env-default:"true"`
	RetryMaxAttempts int           `env:"MSG_RETRY_MAX" env-default:"5"`
	RetryBackoff     time.Duration `env:"MSG_RETRY_BACKOFF" env-default:"50ms"`

	// BulkheadLimit bounds concurrent in-flight operations against the
	// backend, keeping retry storms from piling up behind the single
	// write connection. Zero disables the bulkhead.
	BulkheadLimit int64 `env:"MSG_BULKHEAD_LIMIT" env-default:"32"`
}

// ResilientQueue wraps a Queue with circuit breaker + retry around
// StoreBusy, the engine's one transient error kind, plus an optional
// bulkhead bounding in-flight operations.
type ResilientQueue struct {
	next     Queue
	cb       *resilience.CircuitBreaker
	sem      *concurrency.Semaphore
	retryCfg resilience.RetryConfig
}

// NewResilientQueue wraps next with resilience features per cfg.
func NewResilientQueue(next Queue, cfg ResilientQueueConfig) *ResilientQueue {
	rq := &ResilientQueue{next: next}

	if cfg.BulkheadLimit > 0 {
		rq.sem = concurrency.NewSemaphore(cfg.BulkheadLimit)
	}

	if cfg.CircuitBreakerEnabled {
		rq.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "messagequeue",
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	if cfg.RetryEnabled {
		rq.retryCfg = resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         0.2,
			RetryIf:        isRetryableStoreError,
		}
	}

	return rq
}

func isRetryableStoreError(err error) bool {
	return errors.Is(err, errors.CodeUnavailable)
}

func (rq *ResilientQueue) execute(ctx context.Context, fn resilience.Executor) error {
	if rq.sem != nil {
		if err := rq.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer rq.sem.Release(1)
	}

	operation := fn
	if rq.cb != nil {
		cbFn := operation
		operation = func(ctx context.Context) error {
			return rq.cb.Execute(ctx, cbFn)
		}
	}
	if rq.retryCfg.MaxAttempts > 0 {
		return resilience.Retry(ctx, rq.retryCfg, operation)
	}
	return operation(ctx)
}

func (rq *ResilientQueue) Send(ctx context.Context, req SendRequest) (string, error) {
	var id string
	err := rq.execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = rq.next.Send(ctx, req)
		return err
	})
	return id, err
}

func (rq *ResilientQueue) Receive(ctx context.Context, agentID string, channels []string, limit int, typeFilter string) ([]Message, error) {
	var msgs []Message
	err := rq.execute(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = rq.next.Receive(ctx, agentID, channels, limit, typeFilter)
		return err
	})
	return msgs, err
}

func (rq *ResilientQueue) Claim(ctx context.Context, agentID, messageID string) (bool, error) {
	var ok bool
	err := rq.execute(ctx, func(ctx context.Context) error {
		var err error
		ok, err = rq.next.Claim(ctx, agentID, messageID)
		return err
	})
	return ok, err
}

func (rq *ResilientQueue) Complete(ctx context.Context, messageID string, errMsg string) error {
	return rq.execute(ctx, func(ctx context.Context) error {
		return rq.next.Complete(ctx, messageID, errMsg)
	})
}

func (rq *ResilientQueue) SendResponse(ctx context.Context, original Message, payload interface{}, artifactPath string) (string, error) {
	var id string
	err := rq.execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = rq.next.SendResponse(ctx, original, payload, artifactPath)
		return err
	})
	return id, err
}

func (rq *ResilientQueue) CleanupExpired(ctx context.Context) (int, error) {
	var n int
	err := rq.execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = rq.next.CleanupExpired(ctx)
		return err
	})
	return n, err
}
