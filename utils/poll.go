package utils

import (
	"context"
	"fmt"
	"time"
)

// WaitFor calls check every interval until it reports done, fails, or
// timeout or ctx runs out.
func WaitFor(ctx context.Context, timeout, interval time.Duration, check func() (done bool, err error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
