package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/s1natex/tarefas-api/internal/auth"
	"github.com/s1natex/tarefas-api/internal/config"
	"github.com/s1natex/tarefas-api/internal/logging"
	"github.com/s1natex/tarefas-api/internal/middleware"
	"github.com/s1natex/tarefas-api/internal/tasks"
	"github.com/s1natex/tarefas-api/internal/telemetry"
)

const serviceName = "tarefas-api"

func main() {
	flags := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	configPath := flags.String("config", "api/env.json", "config file (.json, .jsonc, .toml, .yaml)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before resolving settings")
	addr := flags.String("addr", "", "listen address, overrides the addr setting")
	_ = flags.Parse(os.Args[1:])

	// bootstrap logger until settings decide level and format
	boot := logging.New(os.Stdout, os.Getenv("LOG_LEVEL"), "json")
	if err := config.LoadDotEnv(*envFile); err != nil {
		boot.Warn("dotenv_unreadable", slog.String("path", *envFile), slog.String("error", err.Error()))
	}

	settings, err := config.Load(config.NewLoader(*configPath, boot))
	if err != nil {
		boot.Error("config_invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addr != "" {
		settings.Addr = *addr
	}

	logger := logging.New(os.Stdout, settings.LogLevel, settings.LogFormat)
	slog.SetDefault(logger) // for third-party packages that use slog

	if err := run(settings, logger); err != nil {
		logger.Error("server_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(settings config.Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, settings.OTelExporter, serviceName, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	store, closeStore, err := openStore(ctx, settings, logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", settings.StoreDriver, err)
	}
	defer func() { _ = closeStore() }()

	instrumented, err := tasks.NewInstrumentedStore(store, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	gate, err := auth.New(authConfig(settings), logger)
	if err != nil {
		return err
	}

	r := newRouter(app{
		svc:         tasks.NewService(instrumented),
		gate:        gate,
		logger:      logger,
		corsOrigins: settings.CORSOrigins,
		limiter:     middleware.NewClientLimiter(settings.RateLimitRPS, settings.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen",
			slog.String("addr", settings.Addr),
			slog.String("store", settings.StoreDriver),
			slog.String("auth", gate.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured backend and a func releasing it.
func openStore(ctx context.Context, s config.Settings, logger *slog.Logger) (tasks.Store, func() error, error) {
	noop := func() error { return nil }

	switch s.StoreDriver {
	case "memory":
		return tasks.NewMemoryStore(), noop, nil
	case "sqlite":
		dsn, err := tasks.SQLiteFileDSN(s.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := tasks.NewSQLiteStore(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := store.ApplyMigrations(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return tasks.NewFileStore(s.TasksFile, logger), noop, nil
	}
}

func authConfig(s config.Settings) auth.Config {
	return auth.Config{
		Strategy:   s.AuthStrategy,
		TokensFile: s.TokensFile,
		GitHub: auth.GitHubConfig{
			ClientID:      s.GitHubClientID,
			ClientSecret:  s.GitHubClientSecret,
			CallbackURL:   s.GitHubCallbackURL,
			RedirectPath:  s.AuthRedirect,
			SessionSecret: s.SessionSecret,
			AllowOpen:     s.AuthAllowOpen,
		},
	}
}

type app struct {
	svc         *tasks.Service
	gate        auth.Strategy
	logger      *slog.Logger
	corsOrigins []string
	limiter     *middleware.ClientLimiter
}

// newRouter wires the public endpoints, the gated task routes, and the
// middleware stack
func newRouter(a app) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(15 * time.Second))

	origins := a.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// session cookies need credentials, which browsers refuse with "*"
	withCredentials := !(len(origins) == 1 && origins[0] == "*")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Trace-Id"},
		AllowCredentials: withCredentials,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.RequestLogger(a.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.RateLimitMiddleware(a.limiter))

	// ---- Routes ----

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Olá Tarefas"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	// login/callback routes stay public
	a.gate.RegisterRoutes(r)

	r.Group(func(g chi.Router) {
		g.Use(a.gate.Middleware)
		tasks.RegisterRoutes(g, a.svc, a.logger)
	})

	return r
}
