package common

import (
	"context"
	"time"
)

// SleepContext waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short by cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
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
