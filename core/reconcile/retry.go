package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// FinalizeConfig bounds retries and concurrency of the Executor.
type FinalizeConfig struct {
	// MaxAttempts is the number of provider calls per finalization effect.
	MaxAttempts int `mapstructure:"max_attempts" default:"5"`
	// BaseDelayMS is the first retry delay; it doubles per attempt.
	BaseDelayMS int `mapstructure:"base_delay_ms" default:"200"`
	// MaxDelayMS caps the retry delay.
	MaxDelayMS int `mapstructure:"max_delay_ms" default:"10000"`
	// StorageAttempts is the number of store writes per persist before the pass aborts.
	StorageAttempts int `mapstructure:"storage_attempts" default:"3"`
	// Concurrency is the number of products applied in parallel.
	Concurrency int `mapstructure:"concurrency" default:"4"`
}

func (c FinalizeConfig) withDefaults() FinalizeConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelayMS <= 0 {
		c.BaseDelayMS = 200
	}
	if c.MaxDelayMS < c.BaseDelayMS {
		c.MaxDelayMS = c.BaseDelayMS
	}
	if c.StorageAttempts <= 0 {
		c.StorageAttempts = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Backoff returns the delay before retry number attempt (0-based): base*2^attempt
// capped at maxDelay, plus up to base/2 of jitter derived from seed and attempt.
// The same inputs always give the same delay.
func Backoff(attempt int, base, maxDelay time.Duration, seed string) time.Duration {
	factor := int64(1)
	if attempt > 0 {
		if attempt > 30 {
			factor = 1 << 30
		} else {
			factor = 1 << attempt
		}
	}

	delay := base * time.Duration(factor)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	maxJitter := int64(base / 2)
	if maxJitter <= 0 {
		return delay
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, attempt)))
	jitter := binary.BigEndian.Uint64(hash[:8]) % uint64(maxJitter)
	return delay + time.Duration(jitter)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
