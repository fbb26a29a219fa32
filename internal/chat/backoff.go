package chat

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// retrySchedule allows maxAttempts attempts in total.
func retrySchedule(step time.Duration, maxAttempts int) backoff.BackOff {
	return backoff.WithMaxRetries(&linearBackOff{step: step}, uint64(maxAttempts-1))
}
