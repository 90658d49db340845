package startup

import (
	"context"
	"time"

	redisstorage "github.com/hospitalbooking/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis с повторами.
func ConnectRedisWithRetry(ctx context.Context, redisURL string, maxWait time.Duration, logPrefix string) (*redisstorage.Client, error) {
	return withRetry(ctx, maxWait, logPrefix, "redis connect", func(ctx context.Context) (*redisstorage.Client, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return redisstorage.New(attemptCtx, redisURL)
	})
}
