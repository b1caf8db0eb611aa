package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReport holds the result of a ping.
type RedisReport struct {
	LatencyMS int64 `json:"latency_ms"`
}

// CheckRedis pings the server.
func CheckRedis(ctx context.Context, client redis.Cmdable) (*RedisReport, error) {
	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisReport{LatencyMS: time.Since(start).Milliseconds()}, nil
}
