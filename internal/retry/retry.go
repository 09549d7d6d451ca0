// Package retry runs an operation again after transient store failures with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
)

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Factor    float64
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: time.Second,
		Factor:    2,
	}
}

// Delay returns the wait before the given retry (1-based).
func (p Policy) Delay(retry int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= p.Factor
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out of attempts,
// or ctx is done. The last error is returned.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !domain.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		metrics.RecordRetry(op)

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
