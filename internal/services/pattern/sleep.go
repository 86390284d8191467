package pattern

import (
	"context"
	"time"
)

// Sleeper waits for a duration unless the context is done first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// timerSleeper is the wall-clock Sleeper used outside tests.
type timerSleeper struct{}

// Sleep returns ctx.Err() as soon as the context is done, and nil once d has elapsed.
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
