package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/hospitalbooking/internal/logger"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// withRetry повторяет connect с удвоением паузы (до 30s), пока не истечёт maxWait или ctx.
// logPrefix добавляется к сообщениям лога (например "console: ").
func withRetry[T any](ctx context.Context, maxWait time.Duration, logPrefix, what string, connect func(context.Context) (T, error)) (T, error) {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		v, err := connect(ctx)
		if err == nil {
			return v, nil
		}
		if time.Now().After(deadline) {
			var zero T
			return zero, fmt.Errorf("%s (gave up after %v): %w", what, maxWait, err)
		}
		logger.Errorf("%s%s failed, retry in %v: %v", logPrefix, what, backoff, err)
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
