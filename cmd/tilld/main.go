// tilld serves the till HTTP API, listens for scanner datagrams and runs
// the background workers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	app.SetupLogging(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	a, err := app.New(cfg, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Prepare(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare database")
	}

	// Workers, retry cron, config watcher and UDP listeners stop with ctx.
	a.Start(ctx)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router.New(a),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /v1/events streams for as long as the terminal is up.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("terminal", cfg.TerminalName).Msgf("till listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
