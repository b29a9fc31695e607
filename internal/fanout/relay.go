package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"chitchat/internal/constants"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	relayKindUsers = "users"
	relayKindChat  = "chat"
)

// RelayEvent carries an encoded push between hub instances.
type RelayEvent struct {
	Origin         string          `json:"origin"`
	Kind           string          `json:"kind"`
	UserIDs        []string        `json:"userIds,omitempty"`
	ChatID         string          `json:"chatId,omitempty"`
	ExcludeSession string          `json:"excludeSession,omitempty"`
	Frame          json.RawMessage `json:"frame"`
}

// Relay moves pushes between instances that share no memory.
type Relay interface {
	Publish(ctx context.Context, event RelayEvent) error
	// Subscribe calls handler for every event until ctx is done.
	Subscribe(ctx context.Context, handler func(RelayEvent)) error
	Close() error
}

// RedisRelay is a Relay over a Redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

// NewRedisRelay connects to redisURL and verifies the connection.
func NewRedisRelay(ctx context.Context, redisURL, channel string, logger *logrus.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if channel == "" {
		channel = constants.DefaultRedisChannel
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRelay{client: client, channel: channel, logger: logger}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, event RelayEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode relay event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, handler func(RelayEvent)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event RelayEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.WithError(err).Warn("Discarding malformed relay event")
				continue
			}
			handler(event)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
