package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/punchclock/bootstrap"
	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/routes"
	"github.com/cppla/punchclock/utils"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Initialize logger early
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	access, err := utils.NewAccessLogger(cfg.Log)
	if err != nil {
		logger.Warn("access logger unavailable, using app logger", zap.Error(err))
		access = logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	r := routes.SetupRouter(routes.Deps{
		Config:       cfg,
		Engine:       app.Engine,
		Issuer:       app.Issuer,
		Audit:        app.Repos.Audit,
		Users:        app.Repos.Users,
		Logger:       logger,
		AccessLogger: access,
		Health:       app.Ping,
	})

	if cfg.SchedulerEnabled() {
		app.Scheduler.Start(ctx)
	}

	srv := utils.NewServer(":"+cfg.App.Port, r, logger)
	srv.OnShutdown(func() {
		cancel()
		app.Scheduler.Stop()
		if err := app.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	})

	logger.Info("starting server", zap.String("port", cfg.App.Port), zap.Bool("tls", cfg.App.TLSCertFile != ""), zap.Time("at", time.Now().UTC()))
	if cfg.App.TLSCertFile != "" && cfg.App.TLSKeyFile != "" {
		err = srv.ListenAndServeTLS(cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}
