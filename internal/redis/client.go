package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	statsGenerationKey = "payment_stats:gen"
	statsKeyPrefix     = "payment_stats"
)

// Client caches payment statistics snapshots. Entries are namespaced by a
// generation counter, so bumping the counter invalidates every snapshot at once.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func Initialize(redisURL string, ttl time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewClient(rdb, ttl), nil
}

func NewClient(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{rdb: rdb, ttl: ttl}
}

func (c *Client) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, statsGenerationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stats generation: %w", err)
	}
	return gen, nil
}

func (c *Client) key(gen int64, name string) string {
	return fmt.Sprintf("%s:%d:%s", statsKeyPrefix, gen, name)
}

// Get loads the snapshot stored under name into dest. It reports false on a miss.
func (c *Client) Get(ctx context.Context, name string, dest interface{}) (bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return false, err
	}
	val, err := c.rdb.Get(ctx, c.key(gen, name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get stats %s: %w", name, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal stats %s: %w", name, err)
	}
	return true, nil
}

func (c *Client) Set(ctx context.Context, name string, value interface{}) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal stats %s: %w", name, err)
	}
	return c.rdb.Set(ctx, c.key(gen, name), jsonData, c.ttl).Err()
}

// Invalidate drops every snapshot. Old generations expire on their own.
func (c *Client) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, statsGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
