package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/config"
	"github.com/Sternrassler/feedpager/pkg/persistence"
	"github.com/Sternrassler/feedpager/pkg/ratelimit"
)

// feedStore is the store type of the CLI feed: int64 ids and keys, raw JSON values.
type feedStore = persistence.Store[int64, int64, json.RawMessage]

// backends holds the persistence resources opened for a run.
type backends struct {
	store  feedStore
	redis  *redis.Client
	closer func() error
}

func (b *backends) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// openBackends opens the configured store. A nil store means no persistence.
func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	sc := cfg.Store
	switch sc.Type {
	case "none":
		return &backends{}, nil
	case "memory":
		return &backends{store: persistence.NewMemory[int64, int64, json.RawMessage]()}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", sc.Redis.Addr, err)
		}
		logger.Info().Str("addr", sc.Redis.Addr).Msg("Connected to Redis")
		return &backends{
			store: persistence.NewRedis[int64, int64, json.RawMessage](client, persistence.RedisOptions{
				Namespace: sc.Namespace,
				TTL:       sc.TTL,
			}),
			redis:  client,
			closer: client.Close,
		}, nil
	case "badger":
		db, err := persistence.OpenBadger[int64, int64, json.RawMessage](persistence.BadgerOptions{
			Path:      sc.Badger.Path,
			InMemory:  sc.Badger.InMemory,
			Namespace: sc.Namespace,
			TTL:       sc.TTL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", sc.Badger.Path).Bool("in_memory", sc.Badger.InMemory).Msg("Opened Badger store")
		return &backends{store: db, closer: db.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", sc.Type)
	}
}

// newTracker builds the error budget tracker, or nil when disabled. A shared
// budget lives in Redis next to the store.
func newTracker(cfg *config.Config, b *backends, logger zerolog.Logger) *ratelimit.Tracker {
	rl := cfg.Source.RateLimit
	if !rl.Enabled {
		return nil
	}
	var backend ratelimit.Backend = ratelimit.NewMemoryBackend()
	if rl.Shared && b.redis != nil {
		backend = ratelimit.NewRedisBackend(b.redis, cfg.Store.Namespace)
	}
	return ratelimit.NewTracker(backend, cfg.RateLimitConfig(), logger)
}
