package persistence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis for unit tests and skips when
// none is running. The integration suite uses testcontainers instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewRedis_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedis should panic with nil redis client")
		}
	}()
	NewRedis[int, int, string](nil, RedisOptions{})
}

func TestRedis(t *testing.T) {
	client := setupTestRedis(t)
	exerciseStore(t, NewRedis[int, int, article](client, RedisOptions{Namespace: "unit"}))
}
