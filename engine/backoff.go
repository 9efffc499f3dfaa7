package engine

import (
	"context"
	"time"

	"github.com/sicko7947/fraudflow"
)

// calculateBackoff is a wrapper around the root helper
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	return fraudflow.CalculateBackoff(int(baseDelay.Milliseconds()), attempt, fraudflow.BackoffExponential)
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
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
