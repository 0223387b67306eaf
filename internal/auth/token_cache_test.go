package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenCache(t *testing.T) (*RedisTokenCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisTokenCache(client), mr
}

func TestTokenCacheRoundTrip(t *testing.T) {
	cache, _ := setupTokenCache(t)
	ctx := context.Background()

	// Unknown token yields nil without error.
	identity, err := cache.GetIdentity(ctx, "raw-token")
	require.NoError(t, err)
	assert.Nil(t, identity)

	stored := Identity{Sub: "user-123", Username: "jdoe", Role: "operator"}
	require.NoError(t, cache.SetIdentity(ctx, "raw-token", stored, time.Now().Add(10*time.Minute)))

	identity, err = cache.GetIdentity(ctx, "raw-token")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, stored, *identity)

	// A different raw token maps to a different key.
	identity, err = cache.GetIdentity(ctx, "other-token")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestTokenCacheSkipsNearlyExpiredTokens(t *testing.T) {
	cache, _ := setupTokenCache(t)
	ctx := context.Background()

	// Expiry inside the buffer window is not worth caching.
	identity := Identity{Sub: "user-123", Username: "jdoe"}
	require.NoError(t, cache.SetIdentity(ctx, "raw-token", identity, time.Now().Add(30*time.Second)))

	got, err := cache.GetIdentity(ctx, "raw-token")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenCacheEntryExpires(t *testing.T) {
	cache, mr := setupTokenCache(t)
	ctx := context.Background()

	identity := Identity{Sub: "user-123", Username: "jdoe"}
	require.NoError(t, cache.SetIdentity(ctx, "raw-token", identity, time.Now().Add(2*time.Minute)))

	got, err := cache.GetIdentity(ctx, "raw-token")
	require.NoError(t, err)
	require.NotNil(t, got)

	mr.FastForward(2 * time.Minute)

	got, err = cache.GetIdentity(ctx, "raw-token")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenCacheKeysNeverContainRawToken(t *testing.T) {
	cache, mr := setupTokenCache(t)
	ctx := context.Background()

	rawToken := "super-secret-bearer-token"
	require.NoError(t, cache.SetIdentity(ctx, rawToken, Identity{Sub: "u"}, time.Now().Add(10*time.Minute)))

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, rawToken)
		assert.Contains(t, key, verifiedTokenKeyPrefix)
	}
}

func TestDevMiddlewareInjectsHeaderIdentity(t *testing.T) {
	var seen Identity
	handler := Middleware(Options{Disabled: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Identity{
			Sub:      UserID(r.Context()),
			Username: Username(r.Context()),
			Role:     Role(r.Context()),
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	req.Header.Set("X-Operator-Username", "jdoe")
	req.Header.Set("X-Operator-Role", "ADMIN")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jdoe", seen.Username)
	assert.Equal(t, "admin", seen.Role, "role header is normalized to lower case")

	// No identity header at all is refused.
	req = httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
