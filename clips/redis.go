package clips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "alex:clip:"

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

// Redis is a Store shared between server replicas.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis parses url, connects, and checks the connection with a ping.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("clips: failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("clips: failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Put(ctx context.Context, clip []byte) (id string, err error) {
	id = newID()
	if err = r.client.Set(ctx, redisKeyPrefix+id, clip, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("clips: failed to store clip: %w", err)
	}
	return id, nil
}

func (r *Redis) Get(ctx context.Context, id string) (clip []byte, ok bool, err error) {
	clip, err = r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("clips: failed to get clip: %w", err)
	}
	return clip, true, nil
}

// Ping checks that redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
