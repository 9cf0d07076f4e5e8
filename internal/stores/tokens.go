package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token namespaces. A key is prefix + namespace + token hash.
const (
	NamespaceSignup        = "signup_"
	NamespacePasswordReset = "passwordreset_"
)

var (
	ErrTokenNotFound         = errors.New("token not found")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
	ErrTokenMalformed        = errors.New("token value malformed")
)

// TokenCache maps capability token hashes to user identifiers with a TTL.
// Each call is a single Redis command; nothing here spans more than one key
// operation.
type TokenCache struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTokenCache(redisClient redis.UniversalClient, prefix string) *TokenCache {
	return &TokenCache{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Key returns the full Redis key for hash in namespace.
func (c *TokenCache) Key(namespace, hash string) string {
	return c.prefix + namespace + hash
}

// Set stores userID under the token key, replacing any previous entry.
func (c *TokenCache) Set(ctx context.Context, namespace, hash string, userID int64, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	value := strconv.FormatInt(userID, 10)
	if err := c.redis.Set(ctx, c.Key(namespace, hash), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return nil
}

// Get returns the user identifier stored under the token key, or
// ErrTokenNotFound when the key is absent or expired.
func (c *TokenCache) Get(ctx context.Context, namespace, hash string) (int64, error) {
	raw, err := c.redis.Get(ctx, c.Key(namespace, hash)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrTokenMalformed, raw)
	}
	return id, nil
}

// Exists reports whether an unexpired entry is present.
func (c *TokenCache) Exists(ctx context.Context, namespace, hash string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.Key(namespace, hash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes the entry. Deleting an absent key is not an error.
func (c *TokenCache) Delete(ctx context.Context, namespace, hash string) error {
	if err := c.redis.Del(ctx, c.Key(namespace, hash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of the entry, or ErrTokenNotFound.
func (c *TokenCache) TTL(ctx context.Context, namespace, hash string) (time.Duration, error) {
	d, err := c.redis.PTTL(ctx, c.Key(namespace, hash)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	// Every token key is written with an expiry, so a non-positive PTTL
	// means the key is gone.
	if d <= 0 {
		return 0, ErrTokenNotFound
	}
	return d, nil
}

func (c *TokenCache) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return nil
}
