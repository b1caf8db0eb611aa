package events

import (
	"context"
	"fmt"

	"entitlement-manager/core/reconcile"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis publishes snapshot envelopes with PUBLISH.
type Redis struct {
	client  redis.Cmdable
	channel string
	log     *zap.Logger
}

// NewRedis creates a Redis publisher on channel.
func NewRedis(client redis.Cmdable, channel string, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, channel: channel, log: log}
}

// Publish sends snap to the channel.
func (r *Redis) Publish(ctx context.Context, snap *reconcile.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return err
	}

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish snapshot to %s: %w", r.channel, err)
	}

	r.log.Debug("Snapshot published",
		zap.String("channel", r.channel),
		zap.String("user_id", snap.UserID),
		zap.Int64("receivers", receivers),
	)
	return nil
}
