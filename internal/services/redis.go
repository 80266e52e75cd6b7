package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	relayChannel      = "chat:relay"
	presenceKeyPrefix = "presence:user:"
	presenceTTL       = 5 * time.Minute
)

// Deletes the presence key only if this instance still owns it.
var releasePresence = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient parses url and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisDirectory keeps cluster-wide presence flags and fans relay traffic out
// to every server process over pub/sub.
type RedisDirectory struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
	log        logrus.FieldLogger
}

type relayEnvelope struct {
	Origin  string           `json:"origin"`
	UserID  uint             `json:"userId"`
	Message WebSocketMessage `json:"message"`
}

func NewRedisDirectory(client *redis.Client, log logrus.FieldLogger) *RedisDirectory {
	return &RedisDirectory{
		client:     client,
		instanceID: uuid.NewString(),
		ttl:        presenceTTL,
		log:        log,
	}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}

func (d *RedisDirectory) InstanceID() string {
	return d.instanceID
}

func (d *RedisDirectory) MarkOnline(ctx context.Context, userID uint) error {
	return d.client.Set(ctx, presenceKey(userID), d.instanceID, d.ttl).Err()
}

func (d *RedisDirectory) MarkOffline(ctx context.Context, userID uint) error {
	return releasePresence.Run(ctx, d.client, []string{presenceKey(userID)}, d.instanceID).Err()
}

func (d *RedisDirectory) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := d.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDirectory) Publish(ctx context.Context, userID uint, msg WebSocketMessage) error {
	data, err := json.Marshal(relayEnvelope{Origin: d.instanceID, UserID: userID, Message: msg})
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, relayChannel, data).Err()
}

// Subscribe hands every relay message published by other instances to
// deliver until ctx is cancelled.
func (d *RedisDirectory) Subscribe(ctx context.Context, deliver func(userID uint, msg WebSocketMessage)) error {
	sub := d.client.Subscribe(ctx, relayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", relayChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var env relayEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					d.log.WithError(err).Warn("dropping malformed relay message")
					continue
				}
				if env.Origin == d.instanceID {
					continue
				}
				deliver(env.UserID, env.Message)
			}
		}
	}()
	return nil
}
