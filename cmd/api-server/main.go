package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/api"
	"github.com/hackgods/clinic-appointment-scheduling/internal/app"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logger"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()
		fallback.Fatal().Err(err).Msg("api-server exited")
	}
}

// run owns every resource of the process so deferred cleanup happens before
// main decides the exit code.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	log = log.With().Str("service", "api-server").Logger()

	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Stringer("opening_time", cfg.Calendar.OpeningTime).
		Stringer("closing_time", cfg.Calendar.ClosingTime).
		Stringer("break_time", cfg.Calendar.BreakTime).
		Uint32("doctors", cfg.Calendar.DoctorAmount).
		Uint32("rooms", cfg.Calendar.RoomAmount).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()

	router := api.NewRouter(api.RouterConfig{
		Service: a.Service,
		Health:  api.NewHealthHandler(a.Pool, api.RedisPinger(a.Redis), cfg.Env, version),
		Metrics: a.Metrics,
		Logger:  log,
	})

	srv := newServer(cfg, router)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
	return runErr
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.LockWaitTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
