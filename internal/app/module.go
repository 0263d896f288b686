// Package app composes the client with fx: profile resources, the API
// stack, the conversation store and the terminal frontend.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/limcrm/crmterm/internal/auth"
	"github.com/limcrm/crmterm/internal/bus"
	"github.com/limcrm/crmterm/internal/config"
	"github.com/limcrm/crmterm/internal/crm"
	"github.com/limcrm/crmterm/internal/gateway"
	"github.com/limcrm/crmterm/internal/inbox"
	"github.com/limcrm/crmterm/internal/lock"
	"github.com/limcrm/crmterm/internal/logging"
	"github.com/limcrm/crmterm/internal/profile"
	"github.com/limcrm/crmterm/internal/status"
	"github.com/limcrm/crmterm/internal/store"
	"github.com/limcrm/crmterm/internal/stream"
	"github.com/limcrm/crmterm/internal/tui"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the terminal client.
func Module(p Params) fx.Option {
	return fx.Module("client",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideTokenSource,
			provideGateway,
			provideCRMClient,
			provideInbox,
			provideWatcher,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	// File only: the terminal belongs to the UI.
	return logging.NewFileOnly(profile.LogPath(p.ProfileName), p.ProfileName)
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

func provideCache(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokenSource(p Params) (*auth.TokenSource, error) {
	return auth.NewTokenSource(profile.TokenPath(p.ProfileName))
}

func provideGateway(cfg *config.Config, tokens *auth.TokenSource, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*gateway.Client, error) {
	gw, err := gateway.New(config.ResolveBaseURL(cfg), tokens, b, logger)
	if err != nil {
		return nil, err
	}
	// Backend call outcomes drive Ready and Degraded.
	gw.SetHealth(machine)
	return gw, nil
}

func provideCRMClient(gw *gateway.Client) *crm.Client {
	return crm.NewClient(gw)
}

func provideInbox(api *crm.Client, cache *store.DB, b *bus.Bus, logger *zap.Logger) *inbox.Store {
	return inbox.NewStore(api, cache, b, logger)
}

func provideWatcher(cfg *config.Config, tokens *auth.TokenSource, b *bus.Bus, logger *zap.Logger) *stream.Watcher {
	return stream.NewWatcher(config.ResolveBaseURL(cfg), tokens, b, logger)
}

func provideApp(p Params, api *crm.Client, ibx *inbox.Store, tokens *auth.TokenSource,
	machine *status.Machine, b *bus.Bus, watcher *stream.Watcher, logger *zap.Logger) *tui.App {
	return tui.NewApp(api, ibx, tokens, machine, b, watcher, p.ProfileName, logger)
}

func registerLifecycle(lc fx.Lifecycle, shut fx.Shutdowner, app *tui.App, lk *lock.Lock, cache *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := app.Run(); err != nil {
					logger.Error("ui error", zap.Error(err))
				}
				_ = shut.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			if err := cache.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
