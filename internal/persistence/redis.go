package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const dedupTTL = 24 * time.Hour

// MarkSeen records a provider message sid for an org and reports whether
// it was already present. This is a best-effort fast path in front of the
// database uniqueness constraint: any Redis error reports the sid as
// unseen so ingestion continues.
func (r *Redis) MarkSeen(ctx context.Context, orgID, providerMessageSid string) (alreadySeen bool) {
	if r == nil || r.Client == nil {
		return false
	}
	key := fmt.Sprintf("sms:sid:%s:%s", orgID, providerMessageSid)
	set, err := r.Client.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		return false
	}
	return !set
}
