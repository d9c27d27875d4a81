// Package loading runs single page loads end to end: it registers the job,
// drives the cache load pipeline, post-processes the page through the
// operation pipeline, updates paging and fetching state, enqueues follow-up
// keys and applies the error handling policy.
package loading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/cache"
	"github.com/Sternrassler/feedpager/pkg/fetching"
	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/operation"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/queue"
	"github.com/Sternrassler/feedpager/pkg/retry"
	"github.com/Sternrassler/feedpager/pkg/state"
)

var (
	// ErrMissingDependency is returned by NewHandler when a collaborator is nil.
	ErrMissingDependency = errors.New("loading: missing dependency")

	// ErrInvalidated is reported for loads that finished after Invalidate.
	ErrInvalidated = errors.New("load invalidated")
)

// Middleware rewrites load params before a load starts.
type Middleware[K comparable] func(paging.LoadParams[K]) paging.LoadParams[K]

// Outcome is the result kind of Handle.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeSkipped
	OutcomeError
	OutcomeIgnored
)

// String returns the outcome name used in metrics and logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	case OutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a handled load.
type Result[Id comparable, K comparable, V any] struct {
	Outcome Outcome

	// Params are the params after middleware.
	Params paging.LoadParams[K]

	// Data is the loaded page after the operation pipeline.
	Data paging.Data[Id, K, V]

	// Err is the surfaced or swallowed load error.
	Err error

	// Attempts counts cache loads, retries included.
	Attempts int
}

// Deps are the collaborators a Handler drives.
type Deps[Id comparable, K comparable, V any] struct {
	Cache    *cache.Cache[Id, K, V]
	Queue    *queue.Manager[K]
	State    *state.Manager[Id]
	Fetching *fetching.Holder[Id, K]
	Applier  *operation.Applier[Id, K, V]
	Retries  *retry.Bookkeeper[K]
}

// Option configures a Handler.
type Option[Id comparable, K comparable, V any] func(*Handler[Id, K, V])

// WithMiddleware appends middleware, applied in order.
func WithMiddleware[Id comparable, K comparable, V any](mw ...Middleware[K]) Option[Id, K, V] {
	return func(h *Handler[Id, K, V]) {
		h.middleware = append(h.middleware, mw...)
	}
}

// WithLogger overrides the component logger.
func WithLogger[Id comparable, K comparable, V any](l zerolog.Logger) Option[Id, K, V] {
	return func(h *Handler[Id, K, V]) {
		h.logger = l
	}
}

// WithBackoff overrides the backoff built from Config.Backoff.
func WithBackoff[Id comparable, K comparable, V any](b *retry.Backoff) Option[Id, K, V] {
	return func(h *Handler[Id, K, V]) {
		if b != nil {
			h.backoff = b
		}
	}
}

// Handler orchestrates loads. State transitions for every load happen inside
// one guarded section; the fetches themselves run concurrently.
type Handler[Id comparable, K comparable, V any] struct {
	cfg        Config
	deps       Deps[Id, K, V]
	backoff    *retry.Backoff
	middleware []Middleware[K]
	logger     zerolog.Logger

	mu    sync.Mutex
	epoch uint64
}

// NewHandler creates a Handler. Every dependency must be set.
func NewHandler[Id comparable, K comparable, V any](deps Deps[Id, K, V], cfg Config, opts ...Option[Id, K, V]) (*Handler[Id, K, V], error) {
	if deps.Cache == nil || deps.Queue == nil || deps.State == nil || deps.Fetching == nil || deps.Applier == nil {
		return nil, ErrMissingDependency
	}
	if deps.Retries == nil {
		deps.Retries = retry.NewBookkeeper[K]()
	}
	cfg = cfg.normalized()
	h := &Handler[Id, K, V]{
		cfg:     cfg,
		deps:    deps,
		backoff: retry.NewBackoff(cfg.Backoff),
		logger:  logging.NewLogger("loading"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Invalidate runs reset inside the guarded section and detaches every load
// that started before it: their results no longer touch state, queues or
// the job ledger.
func (h *Handler[Id, K, V]) Invalidate(reset func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.epoch++
	if reset != nil {
		reset()
	}
}

// load carries one Handle call through its stages.
type load[K comparable] struct {
	req        queue.Request[K]
	params     paging.LoadParams[K]
	registered bool
	first      bool
	previous   paging.LoadState
	epoch      uint64
	attempts   int
	log        zerolog.Logger

	// refused is set when begin did not start the load.
	refused error
}

// Handle performs the load described by req and returns its result. It
// blocks through retries and backoff waits and honours ctx.
func (h *Handler[Id, K, V]) Handle(ctx context.Context, req queue.Request[K]) Result[Id, K, V] {
	l := h.begin(req)
	d := l.params.Direction
	if l.refused != nil {
		l.log.Debug().Err(l.refused).Msg("Load not started")
		return h.finish(l, Result[Id, K, V]{Outcome: OutcomeSkipped, Err: l.refused})
	}
	l.log.Debug().Msg("Load started")

	LoadsInFlight.WithLabelValues(d.String()).Inc()
	defer LoadsInFlight.WithLabelValues(d.String()).Dec()

	for {
		l.attempts++
		start := time.Now()
		res := h.deps.Cache.Load(ctx, l.params)
		LoadDuration.WithLabelValues(d.String()).Observe(time.Since(start).Seconds())

		switch res.Status {
		case cache.StatusSuccess:
			return h.onSuccess(l, res.Data)
		case cache.StatusEmpty:
			return h.onEmpty(l, res.Err)
		case cache.StatusSkipped:
			return h.onSkipped(l, res.Err)
		}

		// StatusError
		switch h.cfg.Policy.Kind {
		case retry.Ignore:
			return h.onIgnore(l, res.Err)

		case retry.RetryLast:
			if !retry.IsRetryable(res.Err) {
				l.log.Debug().Err(res.Err).Msg("Error is not retryable")
				return h.passThrough(l, res.Err)
			}
			count := h.deps.Retries.Increment(l.params.Key, d)
			if count > h.cfg.Policy.MaxRetries {
				h.deps.Retries.Reset(l.params.Key, d)
				retry.RetryExhaustedTotal.WithLabelValues(d.String()).Inc()
				l.log.Error().Err(res.Err).Int("attempts", l.attempts).Msg("Retry attempts exhausted")
				return h.passThrough(l, &retry.ExhaustedError{Attempts: l.attempts, Cause: res.Err})
			}

			delay := h.backoff.Delay(count - 1)
			retry.RetriesTotal.WithLabelValues(d.String()).Inc()
			retry.RetryBackoffSeconds.WithLabelValues(d.String()).Observe(delay.Seconds())
			l.log.Warn().
				Err(res.Err).
				Int("retry", count).
				Int("max_retries", h.cfg.Policy.MaxRetries).
				Dur("backoff", delay).
				Msg("Retrying load after backoff")

			if err := retry.Wait(ctx, delay); err != nil {
				h.deps.Retries.Reset(l.params.Key, d)
				l.log.Warn().Int("retry", count).Msg("Context cancelled during retry backoff")
				return h.passThrough(l, err)
			}

		default:
			return h.passThrough(l, res.Err)
		}
	}
}

// begin runs the guarded preparation: middleware, job registration,
// placeholders and the Loading transition. Requests from a cleared queue
// generation and keys that already have a running job are refused before
// any state changes.
func (h *Handler[Id, K, V]) begin(req queue.Request[K]) load[K] {
	h.mu.Lock()
	defer h.mu.Unlock()

	params := req.Params
	for _, mw := range h.middleware {
		params = mw(params)
	}
	d := params.Direction
	l := load[K]{
		req:    req,
		params: params,
		epoch:  h.epoch,
		log: h.logger.With().
			Str("params", params.String()).
			Bool("bypass", req.Bypass).
			Logger(),
	}
	if !h.deps.Queue.IsCurrent(req) {
		l.refused = ErrInvalidated
		return l
	}
	// every registered job belongs to a running load, so a failed
	// registration means the key is loading in some direction
	if !h.deps.Queue.AddPendingJob(params.Key, d, true) {
		l.refused = paging.ErrAlreadyInFlight
		return l
	}
	l.registered = true

	before := h.deps.State.State()
	l.first = before.Len() == 0
	l.previous = before.LoadStateFor(d)
	if h.deps.Cache.InsertPlaceholders(params, d) {
		h.deps.State.UpdateWithPlaceholders(d, params.Size)
	}
	h.deps.State.UpdateWithLoading(d)
	h.deps.Fetching.UpdateRequested(params.Key)
	return l
}

// settle applies fn inside the guarded section unless the load was
// invalidated, then closes the job and records the outcome.
func (h *Handler[Id, K, V]) settle(l load[K], outcome Outcome, err error, fn func()) Result[Id, K, V] {
	h.mu.Lock()
	if h.epoch != l.epoch {
		h.mu.Unlock()
		l.log.Debug().Msg("Load finished after invalidate, result dropped")
		return h.finish(l, Result[Id, K, V]{Outcome: OutcomeSkipped, Err: ErrInvalidated})
	}
	fn()
	if l.registered {
		h.deps.Queue.UpdateExistingPendingJob(l.params.Key, false, true)
	}
	h.mu.Unlock()
	return h.finish(l, Result[Id, K, V]{Outcome: outcome, Err: err})
}

func (h *Handler[Id, K, V]) onSuccess(l load[K], data paging.Data[Id, K, V]) Result[Id, K, V] {
	d := l.params.Direction
	processed := data
	endReached := data.NextKey == nil
	if d == paging.Prepend {
		endReached = data.PrevKey == nil
	}

	res := h.settle(l, OutcomeSuccess, nil, func() {
		processed.Items = h.deps.Applier.Apply(data.Items, l.params.Key, h.deps.State.State(), h.deps.Fetching.State())
		var ids []Id
		for _, it := range processed.Items {
			if !it.Placeholder {
				ids = append(ids, it.ID)
			}
		}
		h.deps.State.UpdateWithData(d, ids, endReached)
		h.deps.Fetching.UpdateLoaded(data.IDs())
		if !l.req.Bypass {
			h.enqueueAdjacent(d, data, l.first)
		}
		h.deps.Retries.Reset(l.params.Key, d)
	})
	if res.Outcome != OutcomeSuccess {
		return res
	}
	res.Data = processed

	l.log.Debug().
		Int("items", len(processed.Items)).
		Str("origin", data.Origin.String()).
		Bool("end_reached", endReached).
		Msg("Load succeeded")
	return res
}

func (h *Handler[Id, K, V]) onEmpty(l load[K], err error) Result[Id, K, V] {
	d := l.params.Direction
	return h.settle(l, OutcomeEmpty, err, func() {
		h.deps.Cache.RemovePlaceholders(l.params.Key)
		h.deps.State.ClearPlaceholders(d)
		h.deps.State.UpdateWithLoadState(d, paging.NotLoadingState(true))
	})
}

// onSkipped undoes the Loading transition of a load the cache refused.
func (h *Handler[Id, K, V]) onSkipped(l load[K], err error) Result[Id, K, V] {
	d := l.params.Direction
	return h.settle(l, OutcomeSkipped, err, func() {
		h.deps.Cache.RemovePlaceholders(l.params.Key)
		h.deps.State.ClearPlaceholders(d)
		h.deps.State.UpdateWithLoadState(d, l.previous)
	})
}

func (h *Handler[Id, K, V]) onIgnore(l load[K], err error) Result[Id, K, V] {
	d := l.params.Direction
	return h.settle(l, OutcomeIgnored, err, func() {
		h.deps.Cache.RemovePlaceholders(l.params.Key)
		h.deps.State.ClearPlaceholders(d)
		h.deps.State.UpdateWithLoadState(d, l.previous)
	})
}

func (h *Handler[Id, K, V]) passThrough(l load[K], cause error) Result[Id, K, V] {
	d := l.params.Direction
	return h.settle(l, OutcomeError, cause, func() {
		h.deps.Cache.RemovePlaceholders(l.params.Key)
		h.deps.State.ClearPlaceholders(d)
		h.deps.State.UpdateWithError(d, cause)
	})
}

// enqueueAdjacent queues the next key after an append and the previous key
// after a prepend. The first page of a session queues both.
func (h *Handler[Id, K, V]) enqueueAdjacent(d paging.Direction, data paging.Data[Id, K, V], first bool) {
	next := func(key K, dir paging.Direction) queue.Request[K] {
		return queue.Request[K]{Params: paging.LoadParams[K]{
			Key:       key,
			Size:      h.cfg.PageSize,
			Strategy:  paging.SkipCache,
			Direction: dir,
		}}
	}
	if data.NextKey != nil && (d == paging.Append || first) {
		h.deps.Queue.EnqueueAppend(next(*data.NextKey, paging.Append))
	}
	if data.PrevKey != nil && (d == paging.Prepend || first) {
		h.deps.Queue.EnqueuePrepend(next(*data.PrevKey, paging.Prepend))
	}
}

func (h *Handler[Id, K, V]) finish(l load[K], r Result[Id, K, V]) Result[Id, K, V] {
	r.Params = l.params
	r.Attempts = l.attempts
	LoadsTotal.WithLabelValues(r.Params.Direction.String(), r.Outcome.String()).Inc()
	if r.Outcome == OutcomeError || r.Outcome == OutcomeIgnored {
		l.log.Warn().Err(r.Err).Str("outcome", r.Outcome.String()).Int("attempts", r.Attempts).Msg("Load failed")
	}
	return r
}
