package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerificationCache keeps public certificate verification views in Redis
// for a bounded TTL. A nil client disables caching; every method then
// reports a miss without error.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *VerificationCache {
	return &VerificationCache{client: client, ttl: ttl}
}

func (c *VerificationCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *VerificationCache) Get(ctx context.Context, certificateID string, out interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	value, err := c.client.Get(ctx, verifyKey(certificateID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *VerificationCache) Set(ctx context.Context, certificateID string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, verifyKey(certificateID), payload, c.ttl).Err()
}

// Invalidate drops a cached view. Revocation must become visible before
// the TTL would have expired it.
func (c *VerificationCache) Invalidate(ctx context.Context, certificateID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, verifyKey(certificateID)).Err()
}

func verifyKey(certificateID string) string {
	return "certverify:" + certificateID
}
