package queue

import (
	"context"
	"time"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// backoff doubles from initial up to max on every Wait.
type backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newBackoff() *backoff {
	return &backoff{initial: initialBackoff, max: maxBackoff, next: initialBackoff}
}

func (b *backoff) Current() time.Duration { return b.next }

func (b *backoff) Reset() { b.next = b.initial }

// Wait sleeps for the current interval and doubles it. It returns ctx.Err()
// if ctx ends first.
func (b *backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return nil
}
