package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestCounterLockIntegration exercises the counter lock against a real Redis
// container. Run with -short to skip when Docker isn't available.
func TestCounterLockIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	lock := NewRedis(client)

	ok, err := lock.LockCounter("op-1", "holder-a")
	require.NoError(t, err)
	assert.True(t, ok, "Expected the counter lock to be free")

	ok, err = lock.LockCounter("op-1", "holder-b")
	require.NoError(t, err)
	assert.False(t, ok, "Expected the counter to be locked already")

	free, err := lock.CheckCounterAvailability("op-1")
	require.NoError(t, err)
	assert.False(t, free)

	require.NoError(t, lock.UnlockCounter("op-1", "holder-a"))

	ok, err = lock.LockCounter("op-1", "holder-b")
	require.NoError(t, err)
	assert.True(t, ok, "Expected the counter lock to be free after unlock")
}
