// Package pager wires the cache, queues, loading handler, fetching strategy
// and operation pipeline into a running paging engine.
//
// A Pager owns an action loop and one worker per direction. Workers drain
// their queue while the fetching strategy asks for more data and no load of
// the same direction is pending, so appends are serialized and prepends
// proceed independently.
package pager

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/cache"
	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/loading"
	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/operation"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/persistence"
	"github.com/Sternrassler/feedpager/pkg/queue"
	"github.com/Sternrassler/feedpager/pkg/retry"
	"github.com/Sternrassler/feedpager/pkg/sortorder"
	"github.com/Sternrassler/feedpager/pkg/state"
)

var (
	// ErrNotStarted is returned by Dispatch before Start.
	ErrNotStarted = errors.New("pager not started")

	// ErrStopped is returned by Dispatch and Start after Stop.
	ErrStopped = errors.New("pager stopped")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("pager already started")
)

// actionBuffer bounds the number of undelivered actions.
const actionBuffer = 64

// orderChunkSize is the chunk size of the sort order analyzer.
const orderChunkSize = 256

// Option configures a Pager.
type Option[Id comparable, K comparable, V any] func(*options[Id, K, V])

type options[Id comparable, K comparable, V any] struct {
	store      persistence.Store[Id, K, V]
	logger     *zerolog.Logger
	ops        []*operation.Operation[Id, K, V]
	middleware []loading.Middleware[K]
	decider    fetching.Decider[Id, K]
	fprint     operation.Fingerprint[Id, V]
}

// WithStore persists pages and items in s.
func WithStore[Id comparable, K comparable, V any](s persistence.Store[Id, K, V]) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.store = s }
}

// WithLogger overrides the pager logger. Components derive theirs from it.
func WithLogger[Id comparable, K comparable, V any](l zerolog.Logger) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.logger = &l }
}

// WithOperations installs post-processing operations.
func WithOperations[Id comparable, K comparable, V any](ops ...*operation.Operation[Id, K, V]) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.ops = append(o.ops, ops...) }
}

// WithMiddleware installs load param middleware.
func WithMiddleware[Id comparable, K comparable, V any](mw ...loading.Middleware[K]) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.middleware = append(o.middleware, mw...) }
}

// WithDecider replaces the sort order based fetching strategy.
func WithDecider[Id comparable, K comparable, V any](d fetching.Decider[Id, K]) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.decider = d }
}

// WithFingerprint sets how operation inputs are hashed for memoisation.
// Values holding pointers to data mutated in place need it.
func WithFingerprint[Id comparable, K comparable, V any](fn operation.Fingerprint[Id, V]) Option[Id, K, V] {
	return func(o *options[Id, K, V]) { o.fprint = fn }
}

// Pager is a running paging engine.
type Pager[Id comparable, K comparable, V any] struct {
	id     string
	cfg    Config[Id, K]
	logger zerolog.Logger

	cache    *cache.Cache[Id, K, V]
	queue    *queue.Manager[K]
	state    *state.Manager[Id]
	fetching *fetching.Holder[Id, K]
	ops      *operation.Manager[Id, K, V]
	applier  *operation.Applier[Id, K, V]
	retries  *retry.Bookkeeper[K]
	handler  *loading.Handler[Id, K, V]
	decider  fetching.Decider[Id, K]
	order    *sortorder.Chunked[Id]

	actions chan Action[K]
	wg      sync.WaitGroup

	mu          sync.Mutex
	started     bool
	stopped     bool
	ctx         context.Context
	stop        context.CancelFunc
	loadCtx     context.Context
	cancelLoads context.CancelFunc
	workers     [2]worker
}

type worker struct {
	running bool
	rerun   bool
}

// New builds a Pager fetching pages from remote.
func New[Id comparable, K comparable, V any](cfg Config[Id, K], remote paging.Fetcher[Id, K, V], opts ...Option[Id, K, V]) (*Pager[Id, K, V], error) {
	if remote == nil {
		return nil, loading.ErrMissingDependency
	}
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	var o options[Id, K, V]
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	base := logging.NewLogger("pager")
	if o.logger != nil {
		base = *o.logger
	}
	base = base.With().Str("pager_id", id).Logger()
	sub := func(component string) zerolog.Logger {
		return logging.WithComponent(base, component)
	}

	cacheOpts := []cache.Option[Id, K, V]{cache.WithLogger[Id, K, V](sub("cache"))}
	if o.store != nil {
		cacheOpts = append(cacheOpts, cache.WithStore[Id, K, V](o.store))
	}

	p := &Pager[Id, K, V]{
		id:       id,
		cfg:      cfg,
		logger:   sub("pager"),
		cache:    cache.New(remote, cache.Config[Id]{MaxSize: cfg.MaxSize, PlaceholderID: cfg.PlaceholderID}, cacheOpts...),
		queue:    queue.NewManager(cfg.Keys).WithLogger(sub("queue")),
		state:    state.NewManager(cfg.PlaceholderID),
		fetching: fetching.NewHolder(cfg.IDs, cfg.Keys),
		ops:      operation.NewManager(o.ops...),
		retries:  retry.NewBookkeeper[K](),
		decider:  o.decider,
		order:    sortorder.NewChunked(cfg.IDs, orderChunkSize),
		actions:  make(chan Action[K], actionBuffer),
	}
	p.applier = operation.NewApplier(p.ops, 0, operation.WithFingerprint[Id, K, V](o.fprint))
	if p.decider == nil {
		p.decider = fetching.NewStrategy[Id, K](cfg.IDs, cfg.PrefetchDistance)
	}

	p.handler, err = loading.NewHandler(loading.Deps[Id, K, V]{
		Cache:    p.cache,
		Queue:    p.queue,
		State:    p.state,
		Fetching: p.fetching,
		Applier:  p.applier,
		Retries:  p.retries,
	}, loading.Config{
		PageSize: cfg.PageSize,
		Policy:   cfg.Policy,
		Backoff:  cfg.Backoff,
	},
		loading.WithLogger[Id, K, V](sub("loading")),
		loading.WithMiddleware[Id, K, V](o.middleware...),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the pager instance id carried in its logs.
func (p *Pager[Id, K, V]) ID() string {
	return p.id
}

// Start runs the action loop and dispatches the initial load. The pager
// stops when ctx is done or Stop is called.
func (p *Pager[Id, K, V]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.ctx, p.stop = context.WithCancel(ctx)
	p.loadCtx, p.cancelLoads = context.WithCancel(p.ctx)

	p.wg.Add(1)
	go p.loop()

	p.logger.Info().
		Int("page_size", p.cfg.PageSize).
		Int("initial_load_size", p.cfg.InitialLoadSize).
		Int("max_size", p.cfg.MaxSize).
		Str("policy", p.cfg.Policy.String()).
		Msg("Pager started")

	p.enqueueInitial()
	p.kickLocked(paging.Append)
	return nil
}

// Stop halts the action loop and waits for in-flight loads to return.
func (p *Pager[Id, K, V]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.stop != nil {
		p.stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("Pager stopped")
}

// Dispatch hands an action to the action loop.
func (p *Pager[Id, K, V]) Dispatch(a Action[K]) error {
	p.mu.Lock()
	started, stopped, ctx := p.started, p.stopped, p.ctx
	p.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if !started {
		return ErrNotStarted
	}
	select {
	case p.actions <- a:
		return nil
	case <-ctx.Done():
		return ErrStopped
	}
}

// UpdateAccess records that the consumer reached id and lets both
// directions prefetch if they are due.
func (p *Pager[Id, K, V]) UpdateAccess(id Id) error {
	p.fetching.UpdateAccessed(id)
	if err := p.Dispatch(ProcessQueue[K](paging.Append)); err != nil {
		return err
	}
	return p.Dispatch(ProcessQueue[K](paging.Prepend))
}

// State returns the current paging state.
func (p *Pager[Id, K, V]) State() paging.PagingState[Id] {
	return p.state.State()
}

// SubscribeState streams paging states until ctx is done.
func (p *Pager[Id, K, V]) SubscribeState(ctx context.Context) <-chan paging.PagingState[Id] {
	return p.state.Subscribe(ctx)
}

// FetchingState returns the current fetching state.
func (p *Pager[Id, K, V]) FetchingState() fetching.State[Id, K] {
	return p.fetching.State()
}

// ObserveItem streams the state of item id until ctx is done.
func (p *Pager[Id, K, V]) ObserveItem(ctx context.Context, id Id) <-chan cache.ItemState[V] {
	return p.cache.ObserveItem(ctx, id)
}

// Snapshot returns the cached items in retrieval order with operations
// applied. Operation predicates are evaluated against the initial key.
func (p *Pager[Id, K, V]) Snapshot() []paging.Item[Id, V] {
	return p.applier.Apply(p.cache.Snapshot(), p.cfg.InitialKey, p.state.State(), p.fetching.State())
}

// Operations exposes the operation list. Changes apply to later loads and
// snapshots.
func (p *Pager[Id, K, V]) Operations() *operation.Manager[Id, K, V] {
	return p.ops
}

// Cache exposes the underlying cache.
func (p *Pager[Id, K, V]) Cache() *cache.Cache[Id, K, V] {
	return p.cache
}

// Order reports the apparent sort order of the visible ids.
func (p *Pager[Id, K, V]) Order() sortorder.Order {
	return p.order.Analyze(p.state.State().IDs)
}

// Idle reports whether no load is queued, pending or running.
func (p *Pager[Id, K, V]) Idle() bool {
	p.mu.Lock()
	busy := p.workers[paging.Append].running || p.workers[paging.Prepend].running
	p.mu.Unlock()
	return !busy && !p.queue.HasPendingJobs()
}

func (p *Pager[Id, K, V]) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case a := <-p.actions:
			p.handle(a)
		}
	}
}

func (p *Pager[Id, K, V]) handle(a Action[K]) {
	log := p.logger.With().Str("action", a.Kind.String()).Logger()
	switch a.Kind {
	case ActionProcessQueue:
		p.kick(a.Direction)

	case ActionSkipQueue:
		req := p.queue.Stamp(queue.Request[K]{Params: p.params(a), Bypass: true})
		log.Debug().Str("params", req.Params.String()).Msg("Loading without queue")
		ctx := p.currentLoadCtx()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.handler.Handle(ctx, req)
			p.kick(paging.Append)
			p.kick(paging.Prepend)
		}()

	case ActionEnqueue:
		req := queue.Request[K]{Params: p.params(a)}
		if a.Jump {
			p.queue.Jump(a.Direction, req)
		} else if !p.queue.Enqueue(a.Direction, req) {
			log.Debug().Str("params", req.Params.String()).Msg("Request already queued")
		}
		p.kick(a.Direction)

	case ActionInvalidate:
		p.invalidate()

	default:
		log.Warn().Msg("Unknown action ignored")
	}
}

func (p *Pager[Id, K, V]) params(a Action[K]) paging.LoadParams[K] {
	return paging.LoadParams[K]{
		Key:       a.Key,
		Size:      p.cfg.PageSize,
		Strategy:  a.Strategy,
		Direction: a.Direction,
	}
}

func (p *Pager[Id, K, V]) enqueueInitial() {
	p.queue.EnqueueAppend(queue.Request[K]{Params: paging.LoadParams[K]{
		Key:       p.cfg.InitialKey,
		Size:      p.cfg.InitialLoadSize,
		Strategy:  paging.CacheFirst,
		Direction: paging.Append,
	}})
}

// invalidate drops every piece of session state and reloads from the
// initial key. Loads still running are cancelled and their results dropped.
func (p *Pager[Id, K, V]) invalidate() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.cancelLoads()
	p.loadCtx, p.cancelLoads = context.WithCancel(p.ctx)
	p.mu.Unlock()

	p.handler.Invalidate(func() {
		p.queue.ClearQueues()
		p.queue.ClearPendingJobs()
		p.retries.ResetAll()
		p.cache.Clear()
		p.state.Reset()
		p.fetching.Reset()
		p.applier.Purge()
		p.enqueueInitial()
	})
	p.logger.Info().Msg("Pager invalidated")
	p.kick(paging.Append)
}

func (p *Pager[Id, K, V]) currentLoadCtx() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadCtx
}

func (p *Pager[Id, K, V]) kick(d paging.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kickLocked(d)
}

// kickLocked starts the worker of d, or asks a running one for another pass.
func (p *Pager[Id, K, V]) kickLocked(d paging.Direction) {
	if p.stopped {
		return
	}
	w := &p.workers[d]
	if w.running {
		w.rerun = true
		return
	}
	w.running = true
	p.wg.Add(1)
	go p.work(d)
}

func (p *Pager[Id, K, V]) work(d paging.Direction) {
	defer p.wg.Done()
	for {
		loaded := p.drain(d)
		if loaded {
			// a load may queue keys for the other direction
			p.kick(d.Opposite())
		}

		p.mu.Lock()
		w := &p.workers[d]
		if !w.rerun || p.stopped {
			w.running = false
			w.rerun = false
			p.mu.Unlock()
			return
		}
		w.rerun = false
		p.mu.Unlock()
	}
}

// drain loads queued requests of d while they are due. It reports whether
// any load ran.
func (p *Pager[Id, K, V]) drain(d paging.Direction) bool {
	loaded := false
	for {
		if p.ctx.Err() != nil {
			return loaded
		}
		if p.queue.Len(d) == 0 || p.queue.HasPendingJobsFor(d) {
			return loaded
		}
		if !p.decider.ShouldFetch(d, p.state.State(), p.fetching.State()) {
			p.logger.Debug().Str("direction", d.String()).Msg("Prefetch not due")
			return loaded
		}
		req, ok := p.queue.Dequeue(d)
		if !ok {
			return loaded
		}
		p.handler.Handle(p.currentLoadCtx(), req)
		loaded = true
	}
}
