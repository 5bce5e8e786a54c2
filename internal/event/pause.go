package event

import (
	"context"
	"time"
)

// TimerPause is a PauseController backed by a real timer. The pause returns
// early when the context is cancelled.
type TimerPause struct{}

// Pause sleeps for delay or until ctx is done, whichever comes first.
func (p *TimerPause) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SystemClock implements Clock with time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
