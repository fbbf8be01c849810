package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits blocking queue traffic from view event pub/sub so a
// BLPOP never holds up a publish.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	queue, err := connectRedis(ctx, *opt, "queue")
	if err != nil {
		return nil, err
	}
	pubsub, err := connectRedis(ctx, *opt, "pubsub")
	if err != nil {
		queue.Close()
		return nil, err
	}
	return &RedisClients{Queue: queue, PubSub: pubsub}, nil
}

// connectRedis takes opt by value so each role owns its pool settings.
func connectRedis(ctx context.Context, opt redis.Options, role string) (*redis.Client, error) {
	opt.ClientName = "quizrunner-" + role
	client := redis.NewClient(&opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (%s): %w", role, err)
	}
	return client, nil
}

func (r *RedisClients) Close() error {
	return errors.Join(r.Queue.Close(), r.PubSub.Close())
}
