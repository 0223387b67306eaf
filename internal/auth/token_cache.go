package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// verifiedTokenKeyPrefix namespaces cached verification results in Redis
	verifiedTokenKeyPrefix = "verified_token:"
	// TokenExpiryBuffer is the buffer time before actual token expiry to drop the cache entry (in seconds)
	TokenExpiryBuffer = 60
)

// RedisTokenCache remembers identities for tokens the middleware already
// verified, so repeated requests with the same bearer token skip the OIDC
// round trip. Entries expire no later than the token itself.
type RedisTokenCache struct {
	Client *redis.Client
}

// NewRedisTokenCache creates a new Redis token cache
func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{
		Client: client,
	}
}

// GetIdentity retrieves the cached identity for a raw token, or nil when the
// token was never cached or the entry expired.
func (c *RedisTokenCache) GetIdentity(ctx context.Context, rawToken string) (*Identity, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	identityJSON, err := c.Client.Get(ctx, cacheKey(rawToken)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get identity from Redis: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal([]byte(identityJSON), &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached identity: %w", err)
	}

	return &identity, nil
}

// SetIdentity caches a verified identity until shortly before the token's
// own expiry.
func (c *RedisTokenCache) SetIdentity(ctx context.Context, rawToken string, identity Identity, expiresAt time.Time) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ttl := time.Until(expiresAt) - TokenExpiryBuffer*time.Second
	if ttl <= 0 {
		return nil
	}

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	if err := c.Client.Set(ctx, cacheKey(rawToken), identityJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store identity in Redis: %w", err)
	}

	return nil
}

// cacheKey hashes the raw token so bearer tokens never appear in Redis keys.
func cacheKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return verifiedTokenKeyPrefix + hex.EncodeToString(sum[:])
}
