package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seralabs/tokend/internal/app"
	"github.com/seralabs/tokend/internal/config"
	httpx "github.com/seralabs/tokend/internal/http"
	"github.com/seralabs/tokend/internal/observability/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config.yaml (optional)")
	flag.Parse()

	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		// logger is not up yet
		os.Stderr.WriteString("tokend: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Service: "tokend"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer func() { _ = container.Close() }()

	srv := httpx.NewServer(
		cfg.Server.Addr,
		container.Handler,
		config.Duration(cfg.Server.ReadTimeout),
		config.Duration(cfg.Server.WriteTimeout),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	log.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("driver", cfg.Storage.Driver),
		zap.String("env", cfg.App.Env),
	)

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("bye")
}
