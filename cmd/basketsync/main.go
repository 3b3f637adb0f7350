package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"basketsync/internal/application/usecase/monitor"
	"basketsync/internal/infrastructure/config"
	"basketsync/internal/infrastructure/logger"
	"basketsync/internal/infrastructure/svc"
	"basketsync/internal/interfaces/httpapi"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	lg := logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg, lg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	// monitor usecase
	dash := monitor.NewService(sc.BuildMonitorServiceDeps())

	if cfg.HTTP.Enabled {
		api := httpapi.New(httpapi.Config{
			Addr:           cfg.HTTP.Addr,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Log:            lg,
			Dashboard:      dash,
		})
		go func() {
			if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server exited")
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = api.Shutdown(shutdownCtx)
		}()
	}

	log.Info().
		Str("config", *configPath).
		Int("baskets", len(sc.Baskets())).
		Int("print_every_min", cfg.App.PrintEveryMin).
		Bool("http", cfg.HTTP.Enabled).
		Msg("basketsync started")

	if err := dash.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("monitor service exited")
	}
}
