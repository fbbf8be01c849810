package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizrunner-backend/internal/models"
)

const updatesChannelPrefix = "quiz_updates:"

// UpdatesChannel is the Redis pub/sub channel carrying one identity's events.
func UpdatesChannel(identity string) string {
	return updatesChannelPrefix + identity
}

type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

// Publish sends a WebSocket update via Redis pub/sub
func (p *Publisher) Publish(ctx context.Context, identity string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", msg.Type, err)
	}
	return p.redis.Publish(ctx, UpdatesChannel(identity), string(data)).Err()
}
