package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores documents as plain redis strings without expiry.
type RedisSlot struct {
	client *redis.Client
	prefix string
}

// NewRedisSlot creates a slot; prefix is prepended to every key.
func NewRedisSlot(client *redis.Client, prefix string) *RedisSlot {
	return &RedisSlot{client: client, prefix: prefix}
}

func (r *RedisSlot) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisSlot) Store(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, r.prefix+key, data, 0).Err()
}
