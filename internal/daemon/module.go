package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matheus3301/zfetch/internal/api"
	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/config"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/idle"
	"github.com/matheus3301/zfetch/internal/lock"
	"github.com/matheus3301/zfetch/internal/logging"
	"github.com/matheus3301/zfetch/internal/metrics"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/session"
	"github.com/matheus3301/zfetch/internal/status"
	"github.com/matheus3301/zfetch/internal/store"
	intsync "github.com/matheus3301/zfetch/internal/sync"
	"github.com/matheus3301/zfetch/internal/zulip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Anchor      string // initial anchor from the command line; empty = config, checkpoint, first_unread
	SocketPath  string // optional override for testing; empty = use default
	LogLevel    string // overrides the session's log_level when set
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideSyncEngine,
			provideReconciler,
			provideTransport,
			provideIdle,
			provideRegistry,
			provideMetrics,
			provideReporter,
			provideFetcher,
			provideFetchService,
			provideOpsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Session, error) {
	cfg, err := config.LoadSession(session.SessionConfigPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session %q: %w", p.SessionName, err)
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Session) (*zap.Logger, error) {
	level := cfg.LogLevel
	if p.LogLevel != "" {
		level = p.LogLevel
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger)
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger)
}

func provideTransport(cfg *config.Session) (*zulip.Client, error) {
	opts := cfg.ClientOptions()
	opts.HTTPClient = &http.Client{Timeout: cfg.Realm.Timeout.Duration}
	return zulip.NewClient(opts)
}

func provideIdle() *idle.Watcher {
	return idle.New()
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry, b *bus.Bus) *metrics.FetchMetrics {
	m := metrics.NewFetchMetrics(reg)
	metrics.RegisterBusDrops(reg, b.Dropped)
	return m
}

func provideReporter(b *bus.Bus) *fetch.BusReporter {
	return fetch.NewBusReporter(b)
}

func provideFetcher(
	cfg *config.Session,
	transport *zulip.Client,
	engine *intsync.Engine,
	watcher *idle.Watcher,
	reporter *fetch.BusReporter,
	b *bus.Bus,
	machine *status.Machine,
	m *metrics.FetchMetrics,
	logger *zap.Logger,
) *fetch.Fetcher {
	return fetch.New(cfg.FetchConfig(), fetch.Deps{
		Transport: transport,
		Store:     engine,
		Idle:      watcher,
		Directory: engine,
		Reporter:  reporter,
		Bus:       b,
		Machine:   machine,
		Metrics:   m,
		Logger:    logger.Named("fetch"),
	})
}

func provideFetchService(
	p Params,
	fetcher *fetch.Fetcher,
	db *store.DB,
	engine *intsync.Engine,
	reporter *fetch.BusReporter,
	b *bus.Bus,
	logger *zap.Logger,
) *api.FetchService {
	return api.NewFetchService(p.SessionName, api.FetchServiceDeps{
		Fetcher: fetcher,
		Cache:   db,
		Unread:  engine,
		Errors:  reporter,
		Bus:     b,
		Logger:  logger,
	})
}

func provideOpsServer(cfg *config.Session, reg *prometheus.Registry, machine *status.Machine, logger *zap.Logger) *OpsServer {
	return NewOpsServer(cfg.MetricsAddr, reg, machine, logger.Named("ops"))
}

// startAnchor orders the sources of the first anchor: command line, then
// config, then the saved pointer, then first_unread.
func startAnchor(p Params, cfg *config.Session, rec *intsync.Reconciler) zulip.Anchor {
	explicit := zulip.Anchor(p.Anchor)
	if explicit == "" {
		explicit = zulip.Anchor(cfg.Fetch.Anchor)
	}
	return rec.StartAnchor(explicit)
}

// homePointer is the anchor worth resuming from: the selected home message
// if there is one, else the fetcher's pointer.
func homePointer(snap fetch.Snapshot) zulip.Anchor {
	for _, l := range snap.Lists {
		if l.Name == "home" && l.Selected != msglist.NoSelection {
			return zulip.AnchorID(l.Selected)
		}
	}
	return snap.Pointer
}

type lifecycleDeps struct {
	fx.In

	Params     Params
	Config     *config.Session
	Server     *Server
	Ops        *OpsServer
	Lock       *lock.Lock
	DB         *store.DB
	Engine     *intsync.Engine
	Reconciler *intsync.Reconciler
	Fetcher    *fetch.Fetcher
	Idle       *idle.Watcher
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	var cancel context.CancelFunc
	var fetcherDone chan struct{}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			// Start the persistence engine before anything can emit batches.
			d.Engine.Start(runCtx)

			fetcherDone = make(chan struct{})
			go func() {
				defer close(fetcherDone)
				d.Fetcher.Run(runCtx)
			}()

			// Start gRPC server in background.
			go func() {
				if err := d.Server.Start(); err != nil {
					d.Logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := d.Ops.Start(); err != nil {
				return err
			}

			anchor := startAnchor(d.Params, d.Config, d.Reconciler)
			d.Logger.Info("starting initial load", zap.String("anchor", string(anchor)))
			if err := d.Fetcher.Initialize(ctx, anchor); err != nil {
				return fmt.Errorf("initialize home view: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Server.Stop(ctx)
			if err := d.Ops.Stop(ctx); err != nil {
				d.Logger.Warn("error stopping ops server", zap.Error(err))
			}

			if snap, err := d.Fetcher.Snapshot(ctx); err == nil {
				pointer := homePointer(snap)
				if err := d.Reconciler.SavePointer(pointer); err != nil {
					d.Logger.Warn("failed to save pointer", zap.Error(err))
				} else {
					d.Logger.Info("pointer saved", zap.String("pointer", string(pointer)))
				}
			}

			d.Idle.Stop()
			if cancel != nil {
				cancel()
				<-fetcherDone
			}
			d.Engine.Stop()

			if err := d.DB.Close(); err != nil {
				d.Logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("daemon stopped")
			_ = d.Logger.Sync()
			return nil
		},
	})
}
