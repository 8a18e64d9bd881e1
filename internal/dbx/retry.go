package dbx

import (
	"context"
	"time"
)

const (
	readAttempts = 3
	readBackoff  = 25 * time.Millisecond
)

// ReadRetry runs fn up to three times while it fails with an error the
// dialect considers transient. Only idempotent reads may be passed here.
func ReadRetry(ctx context.Context, d Dialect, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || attempt == readAttempts || !d.IsTransient(err) {
			return err
		}

		t := time.NewTimer(time.Duration(attempt) * readBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
