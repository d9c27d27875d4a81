// Package httpsource fetches pages from an HTTP JSON endpoint:
//
//	GET <base>?key=<k>&size=<n>&direction=<append|prepend>
//	{"items":[{"id":..,"value":..}],"prev_key":..,"next_key":..}
//
// Every Fetch is a single request. Failures come back as *FetchError, whose
// Retryable method tells the loading handler whether RetryLast may retry.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/ratelimit"
)

// maxBodyBytes caps the size of a decoded page body.
const maxBodyBytes = 16 << 20

// Config holds the source configuration.
type Config struct {
	// BaseURL is the page endpoint.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single request.
	Timeout time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

// DefaultConfig returns a configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "feedpager/" + Version,
		Timeout:   30 * time.Second,
	}
}

// Version is reported in the default User-Agent.
var Version = "dev"

// Option configures a Source.
type Option[Id comparable, K comparable, V any] func(*Source[Id, K, V])

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient[Id comparable, K comparable, V any](c *http.Client) Option[Id, K, V] {
	return func(s *Source[Id, K, V]) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTracker gates requests on the source's error budget.
func WithTracker[Id comparable, K comparable, V any](t *ratelimit.Tracker) Option[Id, K, V] {
	return func(s *Source[Id, K, V]) { s.tracker = t }
}

// WithLogger overrides the component logger.
func WithLogger[Id comparable, K comparable, V any](l zerolog.Logger) Option[Id, K, V] {
	return func(s *Source[Id, K, V]) { s.logger = l }
}

// WithKeyFormat sets how keys are rendered in the query string.
func WithKeyFormat[Id comparable, K comparable, V any](fn func(K) string) Option[Id, K, V] {
	return func(s *Source[Id, K, V]) {
		if fn != nil {
			s.formatKey = fn
		}
	}
}

// Source is a paging.Fetcher over HTTP.
type Source[Id comparable, K comparable, V any] struct {
	base       *url.URL
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	config     Config
	formatKey  func(K) string
	logger     zerolog.Logger
}

var _ paging.Fetcher[int, int, string] = (*Source[int, int, string])(nil)

// New creates a Source.
func New[Id comparable, K comparable, V any](cfg Config, opts ...Option[Id, K, V]) (*Source[Id, K, V], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", base.Scheme)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig(cfg.BaseURL).Timeout
	}

	s := &Source[Id, K, V]{
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		formatKey:  func(k K) string { return fmt.Sprint(k) },
		logger:     logging.NewLogger("httpsource"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type wireItem[Id comparable, V any] struct {
	ID    Id `json:"id"`
	Value V  `json:"value"`
}

type wirePage[Id comparable, K comparable, V any] struct {
	Items   []wireItem[Id, V] `json:"items"`
	PrevKey *K                `json:"prev_key"`
	NextKey *K                `json:"next_key"`
}

// Fetch implements paging.Fetcher.
func (s *Source[Id, K, V]) Fetch(ctx context.Context, params paging.LoadParams[K]) (paging.Data[Id, K, V], error) {
	var zero paging.Data[Id, K, V]
	direction := params.Direction.String()
	log := s.logger.With().Str("params", params.String()).Logger()

	start := time.Now()
	defer func() {
		RequestDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	}()

	if s.tracker != nil {
		allowed, err := s.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			return zero, &FetchError{Class: ErrorClassNetwork, Message: "rate limit check", Err: err}
		}
		if !allowed {
			ErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			RequestsTotal.WithLabelValues(direction, "rate_limited").Inc()
			log.Warn().Msg("Fetch blocked by rate limiter")
			return zero, &FetchError{Class: ErrorClassRateLimit, Message: "request blocked", Err: ErrBudgetExhausted}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(params), nil)
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	log.Debug().Str("url", req.URL.String()).Msg("Executing page request")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		ErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		RequestsTotal.WithLabelValues(direction, "network_error").Inc()
		log.Warn().Err(err).Msg("Page request failed")
		return zero, &FetchError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if s.tracker != nil {
		if err := s.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			log.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	status := strconv.Itoa(resp.StatusCode)
	RequestsTotal.WithLabelValues(direction, status).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		ErrorsTotal.WithLabelValues(string(class)).Inc()
		log.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Page request error")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return zero, &FetchError{StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
	}

	var page wirePage[Id, K, V]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&page); err != nil {
		ErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, &FetchError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
		}
		return zero, &FetchError{StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "invalid page body", Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}

	data := paging.Data[Id, K, V]{
		Items:   make([]paging.Item[Id, V], 0, len(page.Items)),
		PrevKey: page.PrevKey,
		NextKey: page.NextKey,
		Origin:  paging.OriginNetwork,
	}
	for _, it := range page.Items {
		data.Items = append(data.Items, paging.Item[Id, V]{ID: it.ID, Value: it.Value})
	}
	log.Debug().Int("items", len(data.Items)).Msg("Page fetched")
	return data, nil
}

// pageURL builds the request URL, keeping any query the base URL carries.
func (s *Source[Id, K, V]) pageURL(params paging.LoadParams[K]) string {
	u := *s.base
	q := u.Query()
	q.Set("key", s.formatKey(params.Key))
	q.Set("size", strconv.Itoa(params.Size))
	q.Set("direction", params.Direction.String())
	u.RawQuery = q.Encode()
	return u.String()
}
