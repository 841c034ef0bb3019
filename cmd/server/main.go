package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"

	"chat-orchestrator/internal/di"
	"chat-orchestrator/internal/infra"
	"chat-orchestrator/internal/infra/config"
	"chat-orchestrator/internal/infra/logger"
	"chat-orchestrator/internal/infra/telemetry"
)

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize telemetry and logger
	ctx := context.Background()
	if cfg.OTelLogs {
		shutdown, err := telemetry.InitLogProvider(ctx, telemetry.ConfigFromEnv())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to init otel logs: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}
	log := logger.NewWithOTel(cfg.OTelLogs)
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(ctx, cfg.DSN())
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Wire components
	components, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	// 5. Startup probes. The embedder dimension must match the stored
	// passage vectors or every query would fail at rescoring time.
	if err := runStartupProbes(ctx, components, dbPool); err != nil {
		log.Error("startup probes failed", "error", err)
		os.Exit(1)
	}

	// 6. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	// 7. Register handlers
	components.Handler.Register(e)

	// 8. Health Checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 9. Start Server (h2c, so proxies can speak HTTP/2 without TLS)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.StartH2CServer(addr, &http2.Server{}); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Fatal(err)
	}
}

// runStartupProbes verifies the database is reachable and that the embedder
// produces vectors of the same dimension the index stores.
func runStartupProbes(ctx context.Context, components *di.ApplicationComponents, dbPool *pgxpool.Pool) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(probeCtx)

	g.Go(func() error {
		if err := dbPool.Ping(gctx); err != nil {
			return fmt.Errorf("db ping: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		indexDim, err := components.Index.Dimension(gctx)
		if err != nil {
			return fmt.Errorf("reading index dimension: %w", err)
		}
		if indexDim != components.Embedder.Dimension() {
			return fmt.Errorf("embedder dimension %d does not match index dimension %d",
				components.Embedder.Dimension(), indexDim)
		}
		// Probe with a real call: the configured dimension is only a claim
		// until the provider produces a vector.
		vec, err := components.Embedder.EmbedQuery(gctx, "startup probe")
		if err != nil {
			return fmt.Errorf("embed probe: %w", err)
		}
		if len(vec) != indexDim {
			return fmt.Errorf("embed probe returned %d dimensions, index expects %d", len(vec), indexDim)
		}
		return nil
	})

	return g.Wait()
}
