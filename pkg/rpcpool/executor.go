package rpcpool

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Executor runs remote operations against the pool with bounded retries.
type Executor struct {
	pool        *Pool
	stats       *Stats
	maxAttempts int
	backoff     Backoff
	log         logrus.Ext1FieldLogger

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func NewExecutor(pool *Pool, stats *Stats, maxAttempts int, backoff Backoff, log logrus.Ext1FieldLogger) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Executor{
		pool:        pool,
		stats:       stats,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log.WithField("name", "executor"),
		wait:        sleep,
	}
}

func (e *Executor) Pool() *Pool {
	return e.pool
}

func (e *Executor) Stats() *Stats {
	return e.stats
}

// Run executes op against the best endpoint, failing over to the next
// selection on error. It returns the first success or, after maxAttempts,
// the last error.
func Run[T any](ctx context.Context, e *Executor, op func(ctx context.Context, ep *Endpoint) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		ep := e.pool.Select()
		start := time.Now()
		result, err := op(ctx, ep)
		if err == nil {
			e.pool.RecordSuccess(ep)
			e.stats.Observe(time.Since(start), true)
			return result, nil
		}

		lastErr = &EndpointError{Endpoint: ep, Err: err}
		e.pool.RecordFailure(lastErr)
		e.stats.Observe(0, false)
		e.log.WithError(err).WithFields(logrus.Fields{
			"endpoint":    ep.Name,
			"attempt":     attempt,
			"maxAttempts": e.maxAttempts,
		}).Warn("remote call failed")

		if attempt == e.maxAttempts {
			break
		}
		var delay time.Duration
		if e.backoff != nil {
			delay = e.backoff.Delay(attempt)
		}
		if err := e.wait(ctx, delay); err != nil {
			return zero, errors.Join(errors.Wrap(err, "retry wait interrupted"), lastErr)
		}
	}
	return zero, errors.Wrapf(lastErr, "all %d attempts failed", e.maxAttempts)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
