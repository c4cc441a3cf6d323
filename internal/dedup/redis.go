package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFilter shares the dedup window across processes through Redis keys
// that expire after the TTL.
type RedisFilter struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisFilter creates a filter storing keys under prefix ("dedup" when empty).
func NewRedisFilter(client redis.Cmdable, prefix string, ttl time.Duration) *RedisFilter {
	if prefix == "" {
		prefix = "dedup"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisFilter{client: client, prefix: prefix, ttl: ttl}
}

func (f *RedisFilter) IsDuplicateURL(ctx context.Context, url string) (bool, error) {
	n, err := f.client.Exists(ctx, f.key("url", URLKey(url))).Result()
	if err != nil {
		return false, fmt.Errorf("dedup url check: %w", err)
	}
	return n > 0, nil
}

func (f *RedisFilter) MarkURL(ctx context.Context, url string) error {
	if err := f.client.Set(ctx, f.key("url", URLKey(url)), "1", f.ttl).Err(); err != nil {
		return fmt.Errorf("dedup url mark: %w", err)
	}
	return nil
}

func (f *RedisFilter) IsDuplicateContent(ctx context.Context, text string) (bool, error) {
	created, err := f.client.SetNX(ctx, f.key("content", ContentKey(text)), "1", f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup content check: %w", err)
	}
	return !created, nil
}

func (f *RedisFilter) key(kind, hash string) string {
	return fmt.Sprintf("%s:%s:%s", f.prefix, kind, hash)
}
