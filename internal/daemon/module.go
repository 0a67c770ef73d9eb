package daemon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/smsync/internal/api"
	"github.com/matheus3301/smsync/internal/block"
	"github.com/matheus3301/smsync/internal/bus"
	"github.com/matheus3301/smsync/internal/cache"
	"github.com/matheus3301/smsync/internal/config"
	"github.com/matheus3301/smsync/internal/contacts"
	"github.com/matheus3301/smsync/internal/conversation"
	"github.com/matheus3301/smsync/internal/jobs"
	"github.com/matheus3301/smsync/internal/lock"
	"github.com/matheus3301/smsync/internal/logging"
	"github.com/matheus3301/smsync/internal/merge"
	"github.com/matheus3301/smsync/internal/metadata"
	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/paging"
	"github.com/matheus3301/smsync/internal/parts"
	"github.com/matheus3301/smsync/internal/profile"
	"github.com/matheus3301/smsync/internal/provider/sqlprovider"
	"github.com/matheus3301/smsync/internal/schedule"
	"github.com/matheus3301/smsync/internal/status"
	"github.com/matheus3301/smsync/internal/store"
	intsync "github.com/matheus3301/smsync/internal/sync"
	"github.com/matheus3301/smsync/internal/transport/gateway"
	"github.com/matheus3301/smsync/internal/transport/loopback"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = resolve from the profile's config file
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
			provideMessageStore,
			provideWatcher,
			provideTrigger,
			provideRunner,
			provideBlockRegistry,
			provideMetadata,
			provideDirectory,
			provideExtractor,
			provideMerger,
			provideCache,
			provideSyncEngine,
			providePaging,
			provideTransport,
			provideSender,
			provideScheduler,
			provideActions,
			provideConversationService,
			provideMessageService,
			provideBlockService,
			provideContactService,
			provideSyncService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		cfg := *p.Config
		cfg.ApplyDefaults()
		return &cfg, nil
	}
	return config.Resolve(profile.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, cfg.Log)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore opens the app database. It depends on the lock so no two
// daemons migrate the same file.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.ProfileName)
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
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func messageStorePath(p Params, cfg *config.Config) string {
	if cfg.Provider.Path != "" {
		return cfg.Provider.Path
	}
	return profile.MessagesDBPath(p.ProfileName)
}

func provideMessageStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*sqlprovider.Store, error) {
	path := messageStorePath(p, cfg)
	s, err := sqlprovider.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	logger.Info("message store opened", zap.String("path", path))
	return s, nil
}

func provideWatcher(p Params, cfg *config.Config, s *sqlprovider.Store, logger *zap.Logger) *sqlprovider.Watcher {
	return sqlprovider.NewWatcher(s, messageStorePath(p, cfg), cfg.Sync.Debounce(), logger.Named("watcher"))
}

func provideTrigger() *rebuildTrigger {
	return &rebuildTrigger{}
}

func provideRunner(logger *zap.Logger) *jobs.Runner {
	return jobs.NewRunner(logger.Named("jobs"))
}

func provideBlockRegistry(db *store.DB, s *sqlprovider.Store, trig *rebuildTrigger, logger *zap.Logger) *block.Registry {
	return block.NewRegistry(db, s, trig, logger)
}

func provideMetadata(db *store.DB, trig *rebuildTrigger) *metadata.Store {
	return metadata.New(db, trig)
}

func provideDirectory(db *store.DB) *contacts.Directory {
	return contacts.NewDirectory(db)
}

func provideExtractor(s *sqlprovider.Store, logger *zap.Logger) *parts.Extractor {
	return parts.NewExtractor(s, logger)
}

func provideMerger(s *sqlprovider.Store, blocks *block.Registry, meta *metadata.Store, ex *parts.Extractor, dir *contacts.Directory, cfg *config.Config, logger *zap.Logger) *merge.Engine {
	return merge.NewEngine(s, blocks, meta, ex, dir, cfg.Sync.RecencyCap, logger.Named("merge"))
}

func provideCache(db *store.DB, b *bus.Bus, logger *zap.Logger) *cache.Cache {
	return cache.New(db, b, logger)
}

func provideSyncEngine(s *sqlprovider.Store, m *merge.Engine, c *cache.Cache, db *store.DB, machine *status.Machine, b *bus.Bus, runner *jobs.Runner, trig *rebuildTrigger, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	e := intsync.NewEngine(intsync.Deps{
		Source:   s,
		Merger:   m,
		Cache:    c,
		DB:       db,
		Status:   machine,
		Bus:      b,
		Runner:   runner,
		Debounce: cfg.Sync.Debounce(),
		Logger:   logger.Named("sync"),
	})
	trig.bind(e)
	return e
}

func providePaging(s *sqlprovider.Store, ex *parts.Extractor, logger *zap.Logger) *paging.Registry {
	return paging.NewRegistry(s, ex, logger.Named("paging"))
}

// provideTransport selects the gateway when one is configured and local
// confirmation otherwise.
func provideTransport(cfg *config.Config, logger *zap.Logger) outbox.Transport {
	tc := cfg.Transport
	if tc.GatewayURL == "" {
		logger.Info("no gateway configured, confirming sends locally")
		return loopback.New(logger.Named("loopback"))
	}
	return gateway.New(tc.GatewayURL, tc.RatePerSecond, tc.Burst, logger.Named("gateway"))
}

func provideSender(s *sqlprovider.Store, db *store.DB, t outbox.Transport, b *bus.Bus, trig *rebuildTrigger, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(s, db, t, b, trig, logger.Named("outbox"))
}

func provideScheduler(db *store.DB, runner *jobs.Runner, sender *outbox.Sender, b *bus.Bus, cfg *config.Config, logger *zap.Logger) (*schedule.Scheduler, error) {
	return schedule.New(db, runner, sender, b, cfg.Scheduler.Sweep, logger.Named("schedule"))
}

func provideActions(s *sqlprovider.Store, trig *rebuildTrigger, logger *zap.Logger) *conversation.Actions {
	return conversation.NewActions(s, trig, logger)
}

func provideConversationService(p Params, c *cache.Cache, meta *metadata.Store, actions *conversation.Actions) *api.ConversationService {
	return api.NewConversationService(c, meta, actions, p.ProfileName)
}

func provideMessageService(pages *paging.Registry, sender *outbox.Sender, sched *schedule.Scheduler, cfg *config.Config) *api.MessageService {
	return api.NewMessageService(pages, sender, sched, cfg.Paging.PageSize)
}

func provideBlockService(r *block.Registry) *api.BlockService {
	return api.NewBlockService(r)
}

func provideContactService(dir *contacts.Directory, trig *rebuildTrigger) *api.ContactService {
	return api.NewContactService(dir, trig)
}

func provideSyncService(p Params, e *intsync.Engine, machine *status.Machine, sender *outbox.Sender, pages *paging.Registry) *api.SyncService {
	return api.NewSyncService(e, machine, sender, pages, p.ProfileName)
}

type lifecycleDeps struct {
	fx.In

	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Messages  *sqlprovider.Store
	Watcher   *sqlprovider.Watcher
	Runner    *jobs.Runner
	Engine    *intsync.Engine
	Pages     *paging.Registry
	Transport outbox.Transport
	Sender    *outbox.Sender
	Scheduler *schedule.Scheduler
	Blocks    *block.Registry
	Machine   *status.Machine
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	logger := d.Logger
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Runner.Start(runCtx)
			d.Pages.Start()
			if err := d.Watcher.Start(runCtx); err != nil {
				return err
			}

			if gw, ok := d.Transport.(*gateway.Gateway); ok {
				if err := gw.Connect(ctx); err != nil {
					logger.Warn("gateway unavailable, sends will fail until restart", zap.Error(err))
				}
			}

			if n, err := d.Sender.Recover(ctx); err != nil {
				logger.Error("outbox recovery failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("outbox recovered", zap.Int("failed", n))
			}

			if n, err := d.Blocks.ImportOnce(ctx); err != nil {
				logger.Warn("block list import failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("block list imported", zap.Int("added", n))
			}

			if n, err := d.Scheduler.Restore(ctx); err != nil {
				logger.Error("scheduled messages not restored", zap.Error(err))
			} else {
				logger.Info("scheduled messages restored", zap.Int("pending", n))
			}
			if err := d.Scheduler.Start(); err != nil {
				return err
			}

			// Subscribes to the message store and schedules the first rebuild.
			d.Engine.Start()

			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
					if err := d.Machine.Transition(status.Error); err != nil {
						logger.Warn("status not updated", zap.Error(err))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Server.Stop(ctx)
			d.Engine.Stop()
			d.Scheduler.Stop()
			d.Watcher.Stop()
			d.Pages.Stop()
			d.Runner.Stop()
			cancel()
			if gw, ok := d.Transport.(*gateway.Gateway); ok {
				if err := gw.Close(); err != nil {
					logger.Warn("error closing gateway", zap.Error(err))
				}
			}
			if err := d.Messages.Close(); err != nil {
				logger.Warn("error closing message store", zap.Error(err))
			}
			if err := d.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
