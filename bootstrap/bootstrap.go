// Package bootstrap wires the object graph shared by the HTTP server and punchctl.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/notify"
	"github.com/cppla/punchclock/scheduler"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/store"
	"github.com/cppla/punchclock/utils"
)

// App holds the long-lived components of one process.
type App struct {
	Config    config.AppConfig
	Logger    *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Repos     *store.Repositories
	Engine    *services.Engine
	Scheduler *scheduler.Scheduler
	Issuer    *utils.TokenIssuer
}

// New opens the database, connects Redis when enabled and builds the engine
// and scheduler. Close releases what New opened.
func New(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*App, error) {
	policy, err := services.NewPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	db, err := config.OpenDatabase(cfg.Database, cfg.Log.Level, store.Models()...)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, DB: db, Repos: store.New(db), Issuer: utils.NewTokenIssuer(cfg.App.JWTSecret)}

	rdb, err := utils.NewRedis(cfg.Redis)
	if err != nil {
		// Without Redis the locks and reminder ledger stay in-process.
		logger.Warn("redis unavailable, using in-process locks", zap.Error(err))
		_ = rdb.Close()
		rdb = nil
	}
	app.Redis = rdb

	notifier, err := notify.NewNotifier(ctx, cfg, logger.Named("notify"))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	app.Engine = services.NewEngine(policy, services.Deps{
		Punches:  app.Repos.Punches,
		Users:    app.Repos.Users,
		Tx:       app.Repos.Tx,
		Locker:   utils.NewRedisLocker(rdb, services.NewKeyedLocker(), logger.Named("lock")),
		Notifier: notifier,
		Clock:    services.SystemClock{},
		Logger:   logger,
	})
	app.Scheduler = scheduler.New(
		app.Engine,
		utils.NewOnceStore(rdb, "punchclock:once:"),
		notify.NewAlerter(cfg.Slack, logger.Named("alert")),
		scheduler.OptionsFromConfig(cfg.Scheduler),
		logger.Named("scheduler"),
	)
	return app, nil
}

// Ping checks the database and, when configured, Redis.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
