package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/feedpager/pkg/config"
	"github.com/Sternrassler/feedpager/pkg/logging"
	"github.com/Sternrassler/feedpager/pkg/metrics"
	"github.com/Sternrassler/feedpager/pkg/pager"
	"github.com/Sternrassler/feedpager/pkg/paging"
	"github.com/Sternrassler/feedpager/pkg/source/httpsource"
)

// pollInterval bounds how long the walk waits for a state change.
const pollInterval = 50 * time.Millisecond

var (
	runURL      string
	runStore    string
	runLogLevel string
	runLimit    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Walk the configured feed and print its items",
	Long: `Walk the configured feed from its initial key to the end and print every
item as a JSON line on stdout. Access moves to the last printed item, so
the prefetch strategy decides when the next page loads.

Examples:
  # Walk a feed with defaults
  feedpager run --url https://api.example.com/feed

  # Persist pages in Redis and stop after 500 items
  FEEDPAGER_STORE_REDIS_ADDR=localhost:6379 feedpager run --store redis --limit 500`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "Page endpoint (overrides source.base_url)")
	runCmd.Flags().StringVar(&runStore, "store", "", "Store type: none, memory, redis, badger (overrides store.type)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level (overrides logging.level)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Stop after this many items (0 walks the whole feed)")
}

// flagOverrides applies the run flags on top of the loaded configuration.
func flagOverrides(c *config.Config) {
	if runURL != "" {
		c.Source.BaseURL = runURL
	}
	if runStore != "" {
		c.Store.Type = runStore
	}
	if runLogLevel != "" {
		c.Logging.Level = runLogLevel
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile(), flagOverrides)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logger := logging.Setup(logCfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logging.WithComponent(logger, "metrics")); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	srcOpts := []httpsource.Option[int64, int64, json.RawMessage]{
		httpsource.WithLogger[int64, int64, json.RawMessage](logging.WithComponent(logger, "httpsource")),
	}
	if tracker := newTracker(cfg, b, logging.WithComponent(logger, "ratelimit")); tracker != nil {
		srcOpts = append(srcOpts, httpsource.WithTracker[int64, int64, json.RawMessage](tracker))
	}
	src, err := httpsource.New[int64, int64, json.RawMessage](cfg.SourceConfig(), srcOpts...)
	if err != nil {
		return err
	}

	pcfg, err := cfg.PagerConfig()
	if err != nil {
		return err
	}
	pagerOpts := []pager.Option[int64, int64, json.RawMessage]{
		pager.WithLogger[int64, int64, json.RawMessage](logger),
	}
	if b.store != nil {
		pagerOpts = append(pagerOpts, pager.WithStore(b.store))
	}
	p, err := pager.New[int64, int64, json.RawMessage](pcfg, src, pagerOpts...)
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	n, err := walk(ctx, p, cmd.OutOrStdout(), runLimit)
	logger.Info().Int("items", n).Str("pager_id", p.ID()).Msg("Walk finished")
	return err
}

// walk prints items as they arrive and moves access to the last printed one
// until the append end is reached, limit items were printed or a load fails.
func walk(ctx context.Context, p *pager.Pager[int64, int64, json.RawMessage], out io.Writer, limit int) (int, error) {
	enc := json.NewEncoder(out)
	states := p.SubscribeState(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	seen := make(map[int64]struct{})
	printed := 0
	var last *int64
	for {
		st := p.State()
		items := p.Snapshot()
		for _, item := range items {
			if item.Placeholder {
				continue
			}
			if _, ok := seen[item.ID]; ok {
				continue
			}
			if err := enc.Encode(item); err != nil {
				return printed, fmt.Errorf("write item: %w", err)
			}
			seen[item.ID] = struct{}{}
			printed++
			last = paging.Ptr(item.ID)
			if limit > 0 && printed >= limit {
				return printed, nil
			}
		}

		if st.Append.Kind == paging.LoadError {
			return printed, fmt.Errorf("load failed: %w", st.Append.Cause)
		}
		if st.Append.EndOfPaginationReached && p.Idle() {
			return printed, nil
		}
		if last != nil {
			if err := p.UpdateAccess(*last); err != nil {
				if errors.Is(err, pager.ErrStopped) {
					return printed, ctx.Err()
				}
				return printed, err
			}
		}

		select {
		case <-ctx.Done():
			return printed, ctx.Err()
		case <-states:
		case <-ticker.C:
		}
	}
}
