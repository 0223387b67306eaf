package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"log"

	"github.com/go-redis/redis/v8"
)

// Redis holds per-operator counter locks. The lock is advisory: the counter
// CAS in the database stays the source of truth, the lock just keeps two
// instances from issuing for the same operator at once and wasting retries.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getCounterLockDuration returns the counter lock TTL from environment variables or the default value
func (r *Redis) getCounterLockDuration() time.Duration {
	// Default lock TTL is 10 seconds
	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("COUNTER_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid COUNTER_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// CheckCounterAvailability checks if an operator's counter lock is free without taking it
func (r *Redis) CheckCounterAvailability(operatorID string) (bool, error) {
	key := "counter_lock:" + operatorID
	_, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// LockCounter takes the operator's counter lock for the given holder.
// Returns false without error when someone else already holds it.
func (r *Redis) LockCounter(operatorID, holder string) (bool, error) {
	key := "counter_lock:" + operatorID
	lockDuration := r.getCounterLockDuration()
	ok, err := r.Client.SetNX(context.Background(), key, holder, lockDuration).Result()
	return ok, err
}

// UnlockCounter releases the lock if this holder still owns it. A lock that
// expired or was taken over by another holder is left alone.
func (r *Redis) UnlockCounter(operatorID, holder string) error {
	ctx := context.Background()
	key := fmt.Sprintf("counter_lock:%s", operatorID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == holder {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
