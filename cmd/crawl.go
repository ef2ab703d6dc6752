package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spindlehq/spindle/internal/api"
	"github.com/spindlehq/spindle/internal/checkpoint"
	systemclock "github.com/spindlehq/spindle/internal/clock/system"
	"github.com/spindlehq/spindle/internal/driver"
	"github.com/spindlehq/spindle/internal/events"
	"github.com/spindlehq/spindle/internal/events/sinks"
	collyfetch "github.com/spindlehq/spindle/internal/fetch/colly"
	"github.com/spindlehq/spindle/internal/fetch/headless"
	"github.com/spindlehq/spindle/internal/items"
	"github.com/spindlehq/spindle/internal/logging"
	pubsubpub "github.com/spindlehq/spindle/internal/publisher/pubsub"
	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/spiders/pages"
	"github.com/spindlehq/spindle/internal/stats"
	"github.com/spindlehq/spindle/internal/storage"
	gcsstore "github.com/spindlehq/spindle/internal/storage/gcs"
	localstore "github.com/spindlehq/spindle/internal/storage/local"
	"github.com/spindlehq/spindle/pkg/config"
)

func newCrawlCmd() *cobra.Command {
	var (
		crawlID string
		depth   int
		name    string
		render  bool
	)
	cmd := &cobra.Command{
		Use:   "crawl [urls...]",
		Short: "Starts a crawl over the given seed addresses",
		Long: `Runs the built-in page spider over the seed addresses: every page is
yielded as an item, and same-host links are followed up to --depth. Pass
--crawl-id to resume a previously paused crawl under the same id, or
--render to fetch pages through headless Chrome instead of plain HTTP.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), args, crawlID, depth, name, render)
		},
	}
	cmd.Flags().StringVar(&crawlID, "crawl-id", "", "stable crawl id for pause/resume")
	cmd.Flags().IntVar(&depth, "depth", 1, "how many link hops to follow from the seeds")
	cmd.Flags().StringVar(&name, "name", "pages", "spider name recorded in checkpoints and logs")
	cmd.Flags().BoolVar(&render, "render", false, "fetch pages through headless Chrome")
	return cmd
}

func runCrawl(ctx context.Context, seeds []string, crawlID string, depth int, name string, render bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	clk := systemclock.New()
	agg := stats.New(clk.Now())
	logger = logging.WithLevelCounts(logger, agg)

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := events.NewHub(events.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("event hub close failed", zap.Error(err))
		}
	}()

	cpStore, closeStore, err := buildCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var fetcher spider.Fetcher
	if render {
		hf, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		defer hf.Close()
		fetcher = hf
	} else {
		fetcher = collyfetch.New(collyfetch.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		})
	}
	sp := pages.New(name, seeds, depth, fetcher)

	drv, err := driver.New(sp, nil, driver.Config{
		CrawlID:                     crawlID,
		ConcurrentRequests:          cfg.Spider.ConcurrentRequests,
		ConcurrentRequestsPerDomain: cfg.Spider.ConcurrentRequestsPerDomain,
		DownloadDelay:               cfg.Spider.DownloadDelay,
		DomainDelay:                 cfg.Spider.DomainDelay,
		MaxBlockedRetries:           cfg.Spider.MaxBlockedRetries,
		RetryPriorityPenalty:        cfg.Spider.RetryPriorityPenalty,
		Deadline:                    cfg.Deadline(),
		CheckpointEvery:             cfg.Spider.CheckpointEvery,
		KeepCheckpoint:              cfg.Spider.KeepCheckpoint,
		UseAcceleratedEventLoop:     cfg.Spider.UseAcceleratedEventLoop,
		Checkpoints:                 cpStore,
		Events:                      hub,
		Stats:                       agg,
		Logger:                      logger,
		Clock:                       clk,
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(drv, registry, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
		logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		pub, err := pubsubpub.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		defer func() { _ = pub.Close() }()
		go func() {
			if err := items.StreamTo(ctx, drv.Sink(), pub, cfg.PubSub.TopicName, 64); err != nil {
				logger.Warn("item streaming stopped", zap.Error(err))
			}
		}()
	}

	res, err := drv.Run(runCtx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	if res.Paused {
		logger.Info("crawl paused; rerun with the same crawl id to resume",
			zap.String("crawl_id", res.CrawlID))
	}

	if err := exportItems(ctx, cfg, drv.Sink(), res.CrawlID, logger); err != nil {
		return err
	}
	return nil
}

func buildCheckpointStore(ctx context.Context, cfg config.Config) (checkpoint.Store, func(), error) {
	switch {
	case cfg.DB.DSN != "":
		pg, err := checkpoint.NewPostgresStore(ctx, checkpoint.PostgresConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.PoolMaxConns(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres checkpoint store: %w", err)
		}
		return pg, pg.Close, nil
	case cfg.Spider.CrawlStateDir != "":
		fs, err := checkpoint.NewFileStore(cfg.Spider.CrawlStateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init file checkpoint store: %w", err)
		}
		return fs, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func exportItems(ctx context.Context, cfg config.Config, sink *items.Sink, crawlID string, logger *zap.Logger) error {
	if sink.Len() == 0 {
		return nil
	}
	var provider storage.Provider
	switch {
	case cfg.Storage.GCSBucket != "":
		gcs, err := gcsstore.New(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			return fmt.Errorf("init gcs storage: %w", err)
		}
		defer func() { _ = gcs.Close() }()
		provider = gcs
	case cfg.Storage.LocalDir != "":
		local, err := localstore.New(cfg.Storage.LocalDir)
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
		provider = local
	default:
		return nil
	}
	objectName := fmt.Sprintf("items/%s.json", crawlID)
	if err := sink.Dump(ctx, provider, objectName); err != nil {
		return fmt.Errorf("export items: %w", err)
	}
	logger.Info("items exported", zap.String("object", objectName), zap.Int("count", sink.Len()))
	return nil
}
