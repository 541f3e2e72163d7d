package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/botpack/internal/config"
	"git.home.luguber.info/inful/botpack/internal/events"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/metrics"
	"git.home.luguber.info/inful/botpack/internal/modsync"
	"git.home.luguber.info/inful/botpack/internal/packaging"
	"git.home.luguber.info/inful/botpack/internal/server/httpserver"
)

// newConfigWatcher is replaced in tests.
var newConfigWatcher = config.NewWatcher

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr    string `help:"Listen address (overrides server.addr)"`
	NoWatch bool   `name:"no-watch" help:"Do not reload the configuration file when it changes"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}

	watchPath := root.Config
	if s.NoWatch {
		watchPath = ""
	}
	return RunServe(ctx, cfg, watchPath, logger)
}

// RunServe serves HTTP until ctx ends. A non-empty configPath is watched and
// each valid revision replaces the packaging service; listener and rate limit
// settings apply only at startup.
func RunServe(ctx context.Context, cfg *config.Config, configPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		recorder metrics.Recorder = metrics.NoopRecorder{}
		opts                      = httpserver.Options{Logger: logger}
	)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		opts.MetricsHandler = metrics.HTTPHandler(reg)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.Events, logger)
		if err != nil {
			return err
		}
		publisher = p
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", logfields.Error(err))
		}
	}()

	build := func(c *config.Config) (*packaging.Service, error) {
		return packaging.New(c,
			packaging.WithPublisher(publisher),
			packaging.WithRecorder(recorder),
			packaging.WithLogger(logger))
	}

	svc, err := build(cfg)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg, svc, opts)

	group, gctx := errgroup.WithContext(ctx)
	// abort stops whatever was already started and waits for it.
	abort := func(err error) error {
		cancel()
		_ = group.Wait()
		return err
	}

	if cfg.Modules.Sync.Enabled() {
		if err := startSync(gctx, group, cfg, recorder, logger); err != nil {
			return abort(err)
		}
	}

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			watcher, err := newConfigWatcher(configPath, func(_ context.Context, next *config.Config) {
				replacement, err := build(next)
				if err != nil {
					logger.Error("Keeping previous configuration", logfields.Error(err))
					return
				}
				srv.Swap(replacement)
			})
			if err != nil {
				return abort(err)
			}
			if err := watcher.Start(gctx); err != nil {
				_ = watcher.Stop()
				return abort(err)
			}
			group.Go(func() error {
				<-gctx.Done()
				return watcher.Stop()
			})
		}
	}

	// The server starts last so no early return above leaves it running.
	group.Go(func() error { return srv.Run(gctx) })

	logger.Info("botpack serving",
		slog.String("addr", cfg.Server.Addr),
		logfields.Path(cfg.Modules.Root),
		slog.Bool("metrics", cfg.Metrics.Enabled))
	return group.Wait()
}

// startSync runs module synchronization alongside the server: periodically
// when an interval is set, otherwise once at startup.
func startSync(ctx context.Context, group *errgroup.Group, cfg *config.Config, recorder metrics.Recorder, logger *slog.Logger) error {
	syncer, err := modsync.NewSyncer(cfg.Modules.Root, cfg.Modules.Sync,
		modsync.WithRecorder(recorder),
		modsync.WithLogger(logger))
	if err != nil {
		return err
	}

	interval := cfg.Modules.Sync.Interval
	if interval <= 0 {
		group.Go(func() error {
			// Sync logs its own failures; the server keeps serving the current root.
			_, _ = syncer.Sync(ctx)
			return nil
		})
		return nil
	}

	scheduler, err := modsync.NewScheduler(syncer, interval, logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		_ = scheduler.Stop()
		return err
	}
	group.Go(func() error {
		<-ctx.Done()
		return scheduler.Stop()
	})
	return nil
}
