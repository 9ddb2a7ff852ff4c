package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"aur-admin-data/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel so other
// admin instances can show them too.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

func NewRedisSink(ctx context.Context, cfg config.Redis) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}

	zap.S().Infow("connected to Redis", "host", cfg.Host, "port", cfg.Port, "channel", cfg.Channel)

	return &RedisSink{rdb: rdb, channel: cfg.Channel}, nil
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", ev.ID, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification %s to %s: %w", ev.ID, r.channel, err)
	}
	return nil
}

// Subscribe returns the events published on the sink's channel by any
// instance. The returned function stops the subscription.
func (r *RedisSink) Subscribe(ctx context.Context) (<-chan Event, func() error, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				zap.S().Warnw("dropping malformed notification", "channel", msg.Channel, "error", err)
				continue
			}
			out <- ev
		}
	}()
	return out, sub.Close, nil
}

func (r *RedisSink) Close() error {
	return r.rdb.Close()
}
