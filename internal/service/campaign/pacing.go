package campaign

import (
	"context"
	"time"

	"github.com/ignite/mailroom/internal/domain"
)

// StaggerDelay returns the wait between successive sends. Only staggered
// campaigns with at least two members and a positive duration are paced:
// floor(minutes*60000/(n-1)) milliseconds, so the waits sum to the
// configured duration. Everything else sends back to back.
func StaggerDelay(mode domain.SendMode, staggerMinutes *int, n int) time.Duration {
	if mode != domain.SendStaggered || staggerMinutes == nil || *staggerMinutes <= 0 || n < 2 {
		return 0
	}
	ms := int64(*staggerMinutes) * 60_000 / int64(n-1)
	return time.Duration(ms) * time.Millisecond
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
