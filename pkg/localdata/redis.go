package localdata

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// RedisBackend keeps records in a local Redis instance. Records carry no TTL:
// cart and session lifetime is tied to explicit clears, not expiry.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend builds a Redis-backed record store.
func NewRedisBackend(addr, password, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "shopfront:"
	}
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		keyPrefix: keyPrefix,
	}
}

// Load reads the record value.
func (b *RedisBackend) Load(name string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	val, err := b.client.Get(ctx, b.keyPrefix+name).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Store replaces the record value.
func (b *RedisBackend) Store(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return b.client.Set(ctx, b.keyPrefix+name, data, 0).Err()
}

// Delete removes the record key.
func (b *RedisBackend) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := b.client.Del(ctx, b.keyPrefix+name).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
