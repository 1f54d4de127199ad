// Package redis keeps the credential record in a single Redis hash, so
// several console processes on one host can share a session.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the hash key when no prefix is configured.
const DefaultPrefix = "opsconsole"

// Backend implements credstore.Backend on a Redis hash.
type Backend struct {
	client *redis.Client
	key    string
}

// New connects to the Redis server at addr. An empty prefix uses DefaultPrefix.
func New(addr, prefix string) (*Backend, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix), nil
}

// NewWithURL connects using a redis:// URL.
func NewWithURL(url, prefix string) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewWithClient(redis.NewClient(opts), prefix), nil
}

// NewWithClient wraps an existing client. The backend takes ownership and
// closes it on Close.
func NewWithClient(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, key: prefix + ":credentials"}
}

// Key returns the hash key holding the record.
func (b *Backend) Key() string { return b.key }

func (b *Backend) Get(ctx context.Context) (map[string]string, error) {
	return b.client.HGetAll(ctx, b.key).Result()
}

// Put replaces the hash inside MULTI/EXEC so readers see the old record or
// the new one.
func (b *Backend) Put(ctx context.Context, values map[string]string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(values) > 0 {
			pipe.HSet(ctx, b.key, values)
		}
		return nil
	})
	return err
}

func (b *Backend) Delete(ctx context.Context) error {
	return b.client.Del(ctx, b.key).Err()
}

func (b *Backend) Close() error { return b.client.Close() }
