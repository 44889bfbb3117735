package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/adapters/assistant"
	router "github.com/nexus-ai/callmate/internal/adapters/http"
	"github.com/nexus-ai/callmate/internal/adapters/rtc"
	"github.com/nexus-ai/callmate/internal/app"
	"github.com/nexus-ai/callmate/internal/config"
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
		log.Fatal().Err(err).Msg("failed to load config")
	}

	backend := assistant.NewClient(cfg.APIBase)
	dialer := rtc.NewDialer(cfg)

	coordinator := app.NewCoordinator(app.Config{
		PollInterval: cfg.PollInterval,
		MessageLimit: cfg.MessageLimit,
	}, backend, backend, backend, dialer, rtc.DiscardSink{})

	r := router.SetupRouter(cfg, coordinator, backend, backend)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("callmate client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	// Tear down an in-flight call before the control plane goes away.
	coordinator.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
