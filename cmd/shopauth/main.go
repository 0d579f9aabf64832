// Command shopauth serves the shopAuth HTTP API.
//
// Engine settings come from SHOPAUTH_* variables (see shopAuth.Config).
// Process settings:
//
//	SHOPAUTH_HTTP_ADDR            listen address (default :8080)
//	SHOPAUTH_METRICS_ADDR         Prometheus listen address; empty disables it
//	SHOPAUTH_DATABASE_URL         PostgreSQL URL; empty uses the in-memory store
//	SHOPAUTH_REDIS_ADDR           Redis address for rate limits; empty keeps them in memory
//	SHOPAUTH_TRUST_PROXY_HEADERS  take client IPs from X-Forwarded-For
//	SHOPAUTH_SHUTDOWN_TIMEOUT     graceful shutdown budget (default 15s)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	shopAuth "github.com/MrEthical07/shopAuth"
	"github.com/MrEthical07/shopAuth/internal/worker"
	shopprom "github.com/MrEthical07/shopAuth/metrics/export/prometheus"
	"github.com/MrEthical07/shopAuth/storage/postgres"
	"github.com/MrEthical07/shopAuth/transport/httpapi"
)

const envPrefix = "SHOPAUTH_"

type serverConfig struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("shopauth exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var srv serverConfig
	if err := env.ParseWithOptions(&srv, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse server config: %w", err)
	}
	cfg, err := shopAuth.LoadConfigFromEnv(envPrefix)
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := shopAuth.New().WithConfig(cfg).WithLogger(logger)

	if srv.DatabaseURL != "" {
		if err := postgres.RunMigrations(srv.DatabaseURL); err != nil {
			return err
		}
		db, err := postgres.Open(srv.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		st := postgres.New(db)
		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		builder.WithStore(st)
		logger.Info("using postgres store")
	} else {
		logger.Warn("SHOPAUTH_DATABASE_URL is empty, state is kept in memory")
	}

	if srv.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: srv.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		builder.WithRedis(rdb)
		logger.Info("using redis rate limits", slog.String("addr", srv.RedisAddr))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	go worker.NewJanitor(engine, logger, cfg.Maintenance.Interval).Start(ctx)

	edge := httpapi.NewEdgeLimiter(httpapi.DefaultEdgeConfig())
	defer edge.Stop()

	servers := []*http.Server{{
		Addr: srv.HTTPAddr,
		Handler: httpapi.NewRouter(engine, httpapi.RouterConfig{
			TrustProxyHeaders: srv.TrustProxyHeaders,
			GuardMode:         cfg.Access.ValidationMode,
			Edge:              edge,
			Logger:            logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}}

	if srv.MetricsAddr != "" {
		h, err := shopprom.NewCollector(engine).Handler()
		if err != nil {
			return fmt.Errorf("metrics handler: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		servers = append(servers, &http.Server{
			Addr:              srv.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("listening", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", s.Addr, err)
			}
		}(s)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if serr := s.Shutdown(shutdownCtx); serr != nil {
			logger.Error("shutdown failed", slog.String("addr", s.Addr), slog.String("error", serr.Error()))
		}
	}
	return err
}
