package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// BadgerOptions configures a Badger store.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory only.
	InMemory bool

	Namespace string

	// TTL expires persisted records. Zero keeps them forever.
	TTL time.Duration
}

// Badger is a Store backed by an embedded badger/v4 database.
type Badger[Id comparable, K comparable, V any] struct {
	db    *badger.DB
	keys  Keys
	ttl   time.Duration
	items Codec[paging.Item[Id, V]]
	pages Codec[Page[Id, K]]

	watchers *watchers[Id, V]
}

// OpenBadger opens (or creates) a badger database and wraps it in a store.
// The caller must Close the store.
func OpenBadger[Id comparable, K comparable, V any](opts BadgerOptions) (*Badger[Id, K, V], error) {
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger[Id, K, V]{
		db:    db,
		keys:  Keys{Namespace: opts.Namespace},
		ttl:   opts.TTL,
		items: JSONCodec[paging.Item[Id, V]]{},
		pages: JSONCodec[Page[Id, K]]{},

		watchers: newWatchers[Id, V](),
	}, nil
}

// Close closes the underlying database.
func (b *Badger[Id, K, V]) Close() error {
	return b.db.Close()
}

func (b *Badger[Id, K, V]) get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return data, nil
}

func (b *Badger[Id, K, V]) set(key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (b *Badger[Id, K, V]) del(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// GetItem implements ItemStore.
func (b *Badger[Id, K, V]) GetItem(ctx context.Context, id Id) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	data, err := b.get(b.keys.Item(id))
	if err != nil {
		return zero, err
	}
	it, err := b.items.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return it.Value, nil
}

// SaveItem implements ItemStore.
func (b *Badger[Id, K, V]) SaveItem(ctx context.Context, id Id, value V) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := b.items.Marshal(paging.Item[Id, V]{ID: id, Value: value})
	if err != nil {
		return err
	}
	if err := b.set(b.keys.Item(id), data); err != nil {
		return err
	}
	b.watchers.notify(id, value)
	return nil
}

// RemoveItem implements ItemStore.
func (b *Badger[Id, K, V]) RemoveItem(ctx context.Context, id Id) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.del(b.keys.Item(id))
}

// QueryItems implements ItemStore. Results are in key order.
func (b *Badger[Id, K, V]) QueryItems(ctx context.Context, match func(paging.Item[Id, V]) bool) ([]paging.Item[Id, V], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []paging.Item[Id, V]
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(b.keys.ItemPrefix())
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := b.items.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			if match == nil || match(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger query: %w", err)
	}
	return out, nil
}

// ObserveItem implements ItemStore. The database is embedded, so saves are
// fanned out in process.
func (b *Badger[Id, K, V]) ObserveItem(ctx context.Context, id Id) (<-chan V, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.watchers.watch(ctx, id), nil
}

// GetPage implements PageStore.
func (b *Badger[Id, K, V]) GetPage(ctx context.Context, params paging.LoadParams[K]) (Page[Id, K], error) {
	if err := ctx.Err(); err != nil {
		return Page[Id, K]{}, err
	}
	data, err := b.get(b.keys.Page(params.Key))
	if err != nil {
		return Page[Id, K]{}, err
	}
	p, err := b.pages.Unmarshal(data)
	if err != nil {
		return Page[Id, K]{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return p, nil
}

// SavePage implements PageStore.
func (b *Badger[Id, K, V]) SavePage(ctx context.Context, params paging.LoadParams[K], page Page[Id, K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := b.pages.Marshal(page)
	if err != nil {
		return err
	}
	return b.set(b.keys.Page(params.Key), data)
}

// RemovePage implements PageStore.
func (b *Badger[Id, K, V]) RemovePage(ctx context.Context, params paging.LoadParams[K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.del(b.keys.Page(params.Key))
}

// PageExists implements PageStore.
func (b *Badger[Id, K, V]) PageExists(ctx context.Context, params paging.LoadParams[K]) (bool, error) {
	_, err := b.GetPage(ctx, params)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
