package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// ErrInvalidRecord indicates a stored record could not be decoded.
var ErrInvalidRecord = errors.New("invalid persisted record")

// RedisOptions configures a Redis store.
type RedisOptions struct {
	// Namespace separates feeds sharing one Redis database.
	Namespace string

	// TTL expires persisted records. Zero keeps them forever.
	TTL time.Duration

	// ScanCount is the COUNT hint used by QueryItems.
	ScanCount int64
}

// Redis is a Store backed by go-redis. Items are stored as JSON encoded
// paging.Item records so QueryItems can recover ids without parsing keys.
type Redis[Id comparable, K comparable, V any] struct {
	redis *redis.Client
	keys  Keys
	ttl   time.Duration
	scan  int64
	items Codec[paging.Item[Id, V]]
	pages Codec[Page[Id, K]]
}

// NewRedis creates a Redis store.
func NewRedis[Id comparable, K comparable, V any](client *redis.Client, opts RedisOptions) *Redis[Id, K, V] {
	if client == nil {
		panic("redis client cannot be nil")
	}
	scan := opts.ScanCount
	if scan <= 0 {
		scan = 100
	}
	return &Redis[Id, K, V]{
		redis: client,
		keys:  Keys{Namespace: opts.Namespace},
		ttl:   opts.TTL,
		scan:  scan,
		items: JSONCodec[paging.Item[Id, V]]{},
		pages: JSONCodec[Page[Id, K]]{},
	}
}

// GetItem implements ItemStore.
func (r *Redis[Id, K, V]) GetItem(ctx context.Context, id Id) (V, error) {
	var zero V
	data, err := r.redis.Get(ctx, r.keys.Item(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("redis get: %w", err)
	}
	it, err := r.items.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return it.Value, nil
}

// SaveItem implements ItemStore and publishes the saved value to observers.
func (r *Redis[Id, K, V]) SaveItem(ctx context.Context, id Id, value V) error {
	data, err := r.items.Marshal(paging.Item[Id, V]{ID: id, Value: value})
	if err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.keys.Item(id), data, r.ttl)
	pipe.Publish(ctx, r.keys.Events(id), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save item: %w", err)
	}
	return nil
}

// RemoveItem implements ItemStore.
func (r *Redis[Id, K, V]) RemoveItem(ctx context.Context, id Id) error {
	if err := r.redis.Del(ctx, r.keys.Item(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// QueryItems implements ItemStore by scanning the item prefix.
// Result order is unspecified.
func (r *Redis[Id, K, V]) QueryItems(ctx context.Context, match func(paging.Item[Id, V]) bool) ([]paging.Item[Id, V], error) {
	var out []paging.Item[Id, V]

	iter := r.redis.Scan(ctx, 0, r.keys.ItemPrefix()+"*", r.scan).Iterator()
	batch := make([]string, 0, r.scan)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vals, err := r.redis.MGet(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}
		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				// expired between SCAN and MGET
				continue
			}
			it, err := r.items.Unmarshal([]byte(s))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			if match == nil || match(it) {
				out = append(out, it)
			}
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= r.scan {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// ObserveItem implements ItemStore using Redis pub/sub.
func (r *Redis[Id, K, V]) ObserveItem(ctx context.Context, id Id) (<-chan V, error) {
	sub := r.redis.Subscribe(ctx, r.keys.Events(id))
	// Wait for the subscription confirmation so no save is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan V, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				it, err := r.items.Unmarshal([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case <-out:
				default:
				}
				out <- it.Value
			}
		}
	}()
	return out, nil
}

// GetPage implements PageStore.
func (r *Redis[Id, K, V]) GetPage(ctx context.Context, params paging.LoadParams[K]) (Page[Id, K], error) {
	data, err := r.redis.Get(ctx, r.keys.Page(params.Key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Page[Id, K]{}, ErrNotFound
		}
		return Page[Id, K]{}, fmt.Errorf("redis get: %w", err)
	}
	p, err := r.pages.Unmarshal(data)
	if err != nil {
		return Page[Id, K]{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return p, nil
}

// SavePage implements PageStore.
func (r *Redis[Id, K, V]) SavePage(ctx context.Context, params paging.LoadParams[K], page Page[Id, K]) error {
	data, err := r.pages.Marshal(page)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.keys.Page(params.Key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RemovePage implements PageStore.
func (r *Redis[Id, K, V]) RemovePage(ctx context.Context, params paging.LoadParams[K]) error {
	if err := r.redis.Del(ctx, r.keys.Page(params.Key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PageExists implements PageStore.
func (r *Redis[Id, K, V]) PageExists(ctx context.Context, params paging.LoadParams[K]) (bool, error) {
	n, err := r.redis.Exists(ctx, r.keys.Page(params.Key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
