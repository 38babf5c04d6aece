package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/adapters/httpapi"
	"github.com/synclab/synchub/internal/adapters/ws"
	"github.com/synclab/synchub/internal/ai"
	"github.com/synclab/synchub/internal/auth"
	"github.com/synclab/synchub/internal/config"
	"github.com/synclab/synchub/internal/hub"
	"github.com/synclab/synchub/internal/metrics"
	"github.com/synclab/synchub/internal/ratelimit"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.Auth.Permissive {
		log.Warn().Msg("permissive auth enabled: unauthenticated connections get provisional identities")
	}

	prom := prometheus.NewRegistry()
	collector := metrics.NewCollector(prom)

	authenticator := auth.New(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Permissive)
	limiter := ratelimit.New(cfg.Rate.Limit, cfg.Rate.Window)
	registry := hub.NewRegistry(cfg.History.Size, cfg.History.MaxAge)

	sup := ws.NewSupervisor(cfg, authenticator, limiter, registry, collector)
	router := hub.NewRouter(registry, sup, ai.NewSimulated(500*time.Millisecond), collector)
	sup.AttachRouter(router)

	r := httpapi.SetupRouter(cfg, sup, prom)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("synchub started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	sup.Shutdown(cfg.ShutdownGrace)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
