package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend stores the budget state. Load reports false when no state was
// saved yet.
type Backend interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, s State) error
}

// MemoryBackend keeps the state in process.
type MemoryBackend struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load implements Backend.
func (b *MemoryBackend) Load(context.Context) (State, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return State{}, false, nil
	}
	return *b.state, true, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, s State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = &s
	return nil
}

// RedisKeys are the keys the Redis backend writes.
type RedisKeys struct {
	ErrorsRemaining string
	ResetTimestamp  string
	LastUpdate      string
}

// NewRedisKeys returns the keys for namespace ns.
func NewRedisKeys(ns string) RedisKeys {
	ns = strings.Trim(ns, ":")
	if ns == "" {
		ns = "default"
	}
	prefix := "feedpager:" + ns + ":rate_limit:"
	return RedisKeys{
		ErrorsRemaining: prefix + "errors_remaining",
		ResetTimestamp:  prefix + "reset_timestamp",
		LastUpdate:      prefix + "last_update",
	}
}

// RedisBackend shares the state through Redis.
type RedisBackend struct {
	redis *redis.Client
	keys  RedisKeys
}

// NewRedisBackend creates a RedisBackend under namespace ns.
func NewRedisBackend(client *redis.Client, ns string) *RedisBackend {
	return &RedisBackend{redis: client, keys: NewRedisKeys(ns)}
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context) (State, bool, error) {
	errorsRemaining, err := b.redis.Get(ctx, b.keys.ErrorsRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("get errors remaining: %w", err)
	}

	resetTimestamp, err := b.redis.Get(ctx, b.keys.ResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := b.redis.Get(ctx, b.keys.LastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, false, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return State{}, false, fmt.Errorf("parse last update: %w", err)
		}
	}

	return State{
		ErrorsRemaining: errorsRemaining,
		ResetAt:         time.Unix(resetTimestamp, 0),
		LastUpdate:      lastUpdate,
	}, true, nil
}

// Save implements Backend. The keys are written in one pipeline.
func (b *RedisBackend) Save(ctx context.Context, s State) error {
	lastUpdateJSON, err := json.Marshal(s.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := b.redis.Pipeline()
	pipe.Set(ctx, b.keys.ErrorsRemaining, s.ErrorsRemaining, 0)
	pipe.Set(ctx, b.keys.ResetTimestamp, s.ResetAt.Unix(), 0)
	pipe.Set(ctx, b.keys.LastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
