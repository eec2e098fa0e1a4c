// Command adrpg-relay is the privileged side of the relay as a daemon.
// Overlays connect to /relay over WebSocket; the daemon alone talks to the
// game service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/adrpg/relay"
	"github.com/hazyhaar/adrpg/shield"
)

type config struct {
	Addr           string        `env:"ADRPG_RELAY_ADDR"     envDefault:":8765"`
	BackendURL     string        `env:"ADRPG_BACKEND_URL"    envDefault:"http://localhost:5000"`
	BackendTimeout time.Duration `env:"ADRPG_BACKEND_TIMEOUT"`
	LogLevel       string        `env:"ADRPG_LOG_LEVEL"      envDefault:"info"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "adrpg-relay: parse env:", err)
		os.Exit(2)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "game service base URL")
	flag.DurationVar(&cfg.BackendTimeout, "backend-timeout", cfg.BackendTimeout, "per-request timeout (0: none)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("adrpg-relay: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	var opts []relay.BackendOption
	if cfg.BackendTimeout > 0 {
		opts = append(opts, relay.WithTimeout(cfg.BackendTimeout))
	}
	responder := relay.NewResponder(relay.NewHTTPBackend(cfg.BackendURL, opts...), relay.WithResponderLogger(logger))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(shield.RequestLog(logger))
	r.Handle("/relay", relay.WSHandler(responder, logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	return serve(ctx, logger, &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second},
		"backend", cfg.BackendURL)
}

func serve(ctx context.Context, logger *slog.Logger, srv *http.Server, attrs ...any) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("adrpg-relay: listening", append([]any{"addr", srv.Addr}, attrs...)...)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
