// Package app wires every component into the long-lived background tasks
// and supervises them using golang.org/x/sync/errgroup's cooperative
// cancellation.
package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"pointskeeper/internal/analytics"
	"pointskeeper/internal/bonusclaimer"
	"pointskeeper/internal/entities"
	"pointskeeper/internal/eventrouter"
	"pointskeeper/internal/httpapi"
	"pointskeeper/internal/livepoller"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
	"pointskeeper/internal/platform"
	"pointskeeper/internal/prediction"
	"pointskeeper/internal/registry"
	"pointskeeper/internal/watchloop"
	"pointskeeper/internal/wspool"
)

type Options struct {
	ConfigPath    string
	Address       string
	Simulate      bool
	TokenPath     string
	LogFilePath   string
	AnalyticsPath string
}

// App holds every wired component for the lifetime of one run.
type App struct {
	cfg       *entities.Config
	opts      Options
	logger    *logging.Logger
	ringLog   *httpapi.RingLog
	promReg   *prometheus.Registry
	metrics   *metrics.Collectors
	registry  *registry.Registry
	client    *platform.Client
	pool      *wspool.Pool
	store     *analytics.Store
	httpSrv   *httpapi.Server
	liveEvent chan livepoller.Event
}

// New constructs every component from a loaded config and token. Its I/O is
// opening the analytics database and resolving each configured streamer's
// channel id through the platform API; callers surface any error before
// starting tasks.
func New(cfg *entities.Config, token string, opts Options) (*App, error) {
	ringLog := httpapi.NewRingLog(5000)
	logger := logging.New(logging.Settings{
		Save:        opts.LogFilePath != "",
		FilePath:    opts.LogFilePath,
		Emoji:       true,
		ShowSeconds: true,
	}, ringLog)

	promReg := prometheus.NewRegistry()
	mc := metrics.New(promReg)

	reg := registry.New()
	client := platform.New(token)

	store, err := analytics.Open(opts.AnalyticsPath, logger, mc)
	if err != nil {
		return nil, err
	}

	pool := wspool.New(platform.PubSubURL, token, logger, mc)

	a := &App{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		ringLog:   ringLog,
		promReg:   promReg,
		metrics:   mc,
		registry:  reg,
		client:    client,
		pool:      pool,
		store:     store,
		liveEvent: make(chan livepoller.Event, 64),
	}

	a.httpSrv = httpapi.New(reg, store, cfg, opts.ConfigPath, logger, promReg, ringLog)

	if err := a.seedRegistry(); err != nil {
		return nil, err
	}
	return a, nil
}

// seedRegistry resolves every configured streamer's effective StreamerConfig
// and inserts a Broadcaster row. config.Load has already rejected an
// unknown watch_priority name.
func (a *App) seedRegistry() error {
	for _, ns := range a.cfg.Streamers {
		sc, ok := a.cfg.Resolve(ns.Entry)
		if !ok {
			sc = &entities.StreamerConfig{}
		}
		channelID, err := a.client.GetChannelID(context.Background(), ns.Name)
		if err != nil {
			a.logger.Errorf("app: resolving channel id for %s failed, skipping: %v", ns.Name, err)
			continue
		}
		a.registry.Add(&entities.Broadcaster{
			ChannelID: channelID,
			Name:      ns.Name,
			Config:    sc,
		})
	}
	return nil
}

// Run starts every task under a shared errgroup and blocks until ctx is
// canceled or any task returns a non-context error. Cancellation is
// top-level only; there are no inter-task cancellation tokens.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	broadcasters := make([]livepoller.Broadcaster, 0, len(a.registry.All()))
	for _, b := range a.registry.All() {
		broadcasters = append(broadcasters, livepoller.Broadcaster{ChannelID: b.ChannelID, Name: b.Name})
	}
	poller := livepoller.New(a.client, broadcasters, 60*time.Second, a.liveEvent, a.logger, a.metrics)
	router := eventrouter.New(a.liveEvent, a.pool, a.registry, a.logger)
	engine := prediction.New(a.pool.Output(), a.registry, a.client, a.store, a.logger, a.metrics)
	engine.SetSimulate(a.opts.Simulate)
	watcher := watchloop.New(a.client, a.registry, a.cfg.WatchPriority, a.cfg.WatchStreak, a.logger)
	claimer := bonusclaimer.New(a.client, a.registry, a.store, a.logger)

	g.Go(func() error { return a.supervise(ctx, "wspool", a.pool.Run) })
	g.Go(func() error { return a.supervise(ctx, "livepoller", poller.Run) })
	g.Go(func() error { return a.supervise(ctx, "eventrouter", router.Run) })
	g.Go(func() error { return a.supervise(ctx, "prediction", engine.Run) })
	g.Go(func() error { return a.supervise(ctx, "watchloop", watcher.Run) })
	g.Go(func() error { return a.supervise(ctx, "bonusclaimer", claimer.Run) })
	g.Go(func() error { return a.store.Run(ctx) })
	g.Go(func() error { return a.runHTTP(ctx) })

	return g.Wait()
}

// supervise catches every non-context failure from the wrapped task and
// restarts it after a one-second sleep, so no component crash takes down
// the process after startup.
func (a *App) supervise(ctx context.Context, name string, fn func(context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Errorf("app: task %s exited, restarting in 1s: %v", name, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (a *App) runHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.httpSrv.Listen(a.opts.Address) }()

	select {
	case <-ctx.Done():
		_ = a.httpSrv.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
