package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/calvinlauco/scrum-poker/internal/adapters/http"
	wssignal "github.com/calvinlauco/scrum-poker/internal/adapters/signal"
	"github.com/calvinlauco/scrum-poker/internal/app"
	"github.com/calvinlauco/scrum-poker/internal/config"
	"github.com/calvinlauco/scrum-poker/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	metrics.Register(prometheus.DefaultRegisterer)

	pool, err := ants.NewPool(cfg.Bridge.PoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start bridge pool")
	}
	defer pool.Release()

	dir := app.NewDirectory(app.DirectoryConfig{
		CreateRoomLimit:       cfg.Directory.CreateRoomLimit,
		CreateRoomInterval:    cfg.Directory.CreateRoomInterval,
		MaxRoomName:           cfg.Directory.MaxRoomName,
		MaxConnectionsPerUser: cfg.Directory.MaxConnsPerUser,
	}, app.SimplePolicy{})

	ctrl, err := wssignal.NewSignalWSController(dir, cfg, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure sessions")
	}

	r := router.SetupRouter(ctx, cfg, dir, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("scrum poker server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	ctrl.Wait()
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
		return
	}
	zerolog.SetGlobalLevel(level)
}
