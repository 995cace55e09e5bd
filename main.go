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

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"flood-route-server/config"
	"flood-route-server/handlers"
	"flood-route-server/network"
	"flood-route-server/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := buildSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialise road network source", "source", cfg.NetworkSource, "error", err)
		os.Exit(1)
	}
	defer closeSource()

	routingService := services.NewRoutingService(source, nil, services.Options{
		DefaultRadiusMeters: cfg.DefaultRadiusM,
		FetchTimeout:        cfg.FetchTimeout,
		LookupTimeout:       cfg.LookupTimeout,
		FilterWorkers:       cfg.FilterWorkers,
	}, logger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if cfg.CORSOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.CORSOrigin}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	r.Use(cors.New(corsConfig))

	handlers.NewRoutingHandler(routingService, logger).RegisterRoutes(r)

	servers := []*http.Server{{Addr: cfg.Addr(), Handler: r}}
	if cfg.OpsPort > 0 {
		opsRouter := mux.NewRouter()
		handlers.NewOpsHandler().RegisterRoutes(opsRouter)
		servers = append(servers, &http.Server{Addr: cfg.OpsAddr(), Handler: opsRouter})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("Flood Route Server listening", "addr", srv.Addr, "source", cfg.NetworkSource)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server did not shut down cleanly", "addr", srv.Addr, "error", err)
		}
	}
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// buildSource picks the road network backend and wraps it in the badger cache
// when one is configured. The returned func releases every opened resource.
func buildSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (network.Source, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var source network.Source
	switch cfg.NetworkSource {
	case "overpass":
		client := &http.Client{Timeout: cfg.FetchTimeout}
		source = network.NewOverpassSource(cfg.OverpassURL, client, logger)
	case "file":
		source = network.NewFileSource(cfg.GraphFile)
	case "neo4j":
		executor, err := network.NewNeo4jExecutor(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { executor.Close(context.Background()) })
		if err := executor.Verify(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("neo4j: %w", err)
		}
		source = network.NewNeo4jSource(executor, logger)
	case "postgis":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("postgis: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("postgis: %w", err)
		}
		source = network.NewPostGISSource(pool, logger)
	default:
		return nil, closeAll, fmt.Errorf("unknown network source %q", cfg.NetworkSource)
	}

	if cfg.CacheEnabled() {
		db, err := network.OpenCache(cfg.CacheDir, cfg.CacheInMemory)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("cache: %w", err)
		}
		closers = append(closers, closeBadger(db, logger))
		source = network.NewCachedSource(source, db, cfg.CacheTTL, logger)
		logger.Info("Network cache enabled", "dir", cfg.CacheDir, "in_memory", cfg.CacheInMemory, "ttl", cfg.CacheTTL)
	}
	return source, closeAll, nil
}

func closeBadger(db *badger.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close network cache", "error", err)
		}
	}
}
