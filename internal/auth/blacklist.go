package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Blacklist records revoked session token IDs in Redis so logout takes
// effect before the token expires. Entries carry a TTL matching the
// remaining token lifetime; expired tokens fall out on their own.
type Blacklist struct {
	client *redis.Client
}

// NewBlacklist connects to Redis and verifies the connection.
func NewBlacklist(addr string) (*Blacklist, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Blacklist{client: rdb}, nil
}

func (b *Blacklist) Close() error {
	return b.client.Close()
}

// Revoke marks the token ID as revoked until its natural expiry.
func (b *Blacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, "blacklist:"+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token ID has been revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := b.client.Get(ctx, "blacklist:"+tokenID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
