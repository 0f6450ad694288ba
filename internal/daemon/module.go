// Package daemon composes the conversation-sync runtime for one profile:
// the profile store, the client cache, the state service, the undo
// controller and the counts watcher, wired over a shared event bus.
package daemon

import (
	"context"

	"github.com/tiendoapp/tiendo/internal/bus"
	"github.com/tiendoapp/tiendo/internal/cache"
	"github.com/tiendoapp/tiendo/internal/config"
	"github.com/tiendoapp/tiendo/internal/counts"
	"github.com/tiendoapp/tiendo/internal/lock"
	"github.com/tiendoapp/tiendo/internal/logging"
	"github.com/tiendoapp/tiendo/internal/profile"
	"github.com/tiendoapp/tiendo/internal/state"
	"github.com/tiendoapp/tiendo/internal/status"
	"github.com/tiendoapp/tiendo/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	UserID      string // signed-in user; empty = signed out
	DBPath      string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAuth,
			provideCache,
			provideService,
			provideUndoController,
			provideCountsWatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		logger.Info("no global config, using defaults", zap.Error(err))
		return &config.Config{}
	}
	return cfg
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

func provideStore(p Params, cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = profile.DBPath(p.ProfileName)
	}
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
	if w := cfg.UndoWindow(); w > 0 {
		db.SetUndoWindow(w)
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAuth(p Params) *profile.Auth {
	return profile.NewAuth(p.UserID)
}

func provideCache() *cache.Conversations {
	return cache.New()
}

func provideService(db *store.DB, c *cache.Conversations, auth *profile.Auth, b *bus.Bus, logger *zap.Logger) *state.Service {
	return state.NewService(db, c, auth, b, logger)
}

func provideUndoController(db *store.DB, c *cache.Conversations, auth *profile.Auth, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *state.UndoController {
	return state.NewUndoController(db, c, auth, b, logger, cfg.UndoWindow())
}

func provideCountsWatcher(db *store.DB, auth *profile.Auth, b *bus.Bus, logger *zap.Logger) *counts.Watcher {
	return counts.NewWatcher(db, auth, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	db *store.DB,
	svc *state.Service,
	undo *state.UndoController,
	watcher *counts.Watcher,
	machine *status.Machine,
	auth *profile.Auth,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = machine.Transition(status.Migrating)

			if _, ok := auth.UserID(); ok {
				if err := svc.Hydrate(ctx); err != nil {
					logger.Warn("initial hydration failed", zap.Error(err))
				}
			} else {
				logger.Info("no signed-in user, starting idle")
			}

			watcher.Start(context.Background())

			_ = machine.Transition(status.Ready)
			logger.Info("daemon ready", zap.Duration("undo_window", undo.Window()))
			return nil
		},
		OnStop: func(_ context.Context) error {
			_ = machine.Transition(status.Draining)
			watcher.Stop()
			undo.Shutdown()
			svc.Shutdown()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
