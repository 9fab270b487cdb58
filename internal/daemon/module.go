// Package daemon composes the tgwatchd process from its parts.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"tgwatch/internal/bus"
	"tgwatch/internal/config"
	"tgwatch/internal/deletions"
	"tgwatch/internal/ingest"
	"tgwatch/internal/lock"
	"tgwatch/internal/logging"
	"tgwatch/internal/notify"
	"tgwatch/internal/session"
	"tgwatch/internal/status"
	"tgwatch/internal/store"
	"tgwatch/internal/tg"
	"tgwatch/internal/watchdog"
)

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideEventHandler,
			provideEngine,
			provideNotifier,
			provideDeletionsHandler,
			provideWatchdog,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(session.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring daemon lock", zap.String("dir", session.Dir()))
	l, err := lock.Acquire(session.Dir())
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath()
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

func provideAdapter(cfg *config.Config, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*tg.Adapter, error) {
	return tg.NewAdapter(cfg, db, b, machine, logger)
}

func provideEventHandler(cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *tg.EventHandler {
	return tg.NewEventHandler(db, b, cfg.OwnUserID, logger)
}

func provideEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, logger)
}

func provideNotifier(cfg *config.Config, adapter *tg.Adapter, logger *zap.Logger) *notify.Notifier {
	return notify.New(cfg.WebhookURL, cfg.WebhookTimeout(), adapter, logger)
}

func provideDeletionsHandler(db *store.DB, b *bus.Bus, adapter *tg.Adapter, notifier *notify.Notifier, logger *zap.Logger) *deletions.Handler {
	return deletions.NewHandler(db, b, adapter, notifier, logger)
}

func provideWatchdog(cfg *config.Config, db *store.DB, adapter *tg.Adapter, notifier *notify.Notifier, logger *zap.Logger) *watchdog.Watchdog {
	return watchdog.New(db, adapter, notifier, cfg.OwnUserID, cfg.WatchdogInterval(), logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, adapter *tg.Adapter, events *tg.EventHandler, engine *ingest.Engine, handler *deletions.Handler, wd *watchdog.Watchdog, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Consumers first so no early update is dropped.
			engine.Start(context.Background())
			handler.Start(context.Background())

			adapter.RegisterEvents(events)
			adapter.Start(context.Background())

			wd.Start(context.Background())

			logger.Info("daemon started",
				zap.Int64("own_user_id", cfg.OwnUserID),
				zap.Duration("watchdog_interval", cfg.WatchdogInterval()),
				zap.Bool("webhook_enabled", cfg.WebhookURL != ""))
			return nil
		},
		OnStop: func(_ context.Context) error {
			wd.Stop()
			adapter.Stop()
			handler.Stop()
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
