package rpcpool

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/numbergroup/autopool-notifier/pkg/config"
)

// Backoff yields the wait before retry number attempt (1-based).
type Backoff interface {
	Delay(attempt int) time.Duration
}

type policy struct {
	newBackOff func() backoff.BackOff
}

// NewBackoff builds a fixed or exponential policy. Exponential doubles from
// base up to ceiling without jitter.
func NewBackoff(kind string, base, ceiling time.Duration) Backoff {
	if kind == config.BackoffExponential {
		return policy{newBackOff: func() backoff.BackOff {
			b := &backoff.ExponentialBackOff{
				InitialInterval:     base,
				RandomizationFactor: 0,
				Multiplier:          2,
				MaxInterval:         ceiling,
				MaxElapsedTime:      0,
				Stop:                backoff.Stop,
				Clock:               backoff.SystemClock,
			}
			b.Reset()
			return b
		}}
	}
	return policy{newBackOff: func() backoff.BackOff {
		return backoff.NewConstantBackOff(base)
	}}
}

func (p policy) Delay(attempt int) time.Duration {
	b := p.newBackOff()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
