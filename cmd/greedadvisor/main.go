package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/config"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/handlers"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/health"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/httpmiddleware"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/logging"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/metrics"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/rate"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/trace"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ready := health.NewManager(2 * time.Second)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	ready.Register("postgres", pool.Ping)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	limiter, limiterClose, err := buildLimiter(sweepCtx, cfg, logger, ready)
	if err != nil {
		logger.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = limiterClose()
	}()

	store := storage.New(pool)
	secureCookies := cfg.App.Env != "dev" && cfg.App.Env != "test"

	authHandler := handlers.NewAuthHandler(store, logger, cfg.AccessSecret, cfg.RefreshSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.BcryptCost, secureCookies)
	profileHandler := handlers.NewProfileHandler(store, logger, cfg.BcryptCost)
	uploadHandler := handlers.NewUploadHandler(store, logger, cfg.Upload.Dir, cfg.Upload.MaxSize)
	positionsHandler := handlers.NewPositionsHandler(logger)
	reportHandler := handlers.NewReportHandler(store, logger)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))
	router.Use(httpmiddleware.SecurityHeaders())
	router.Use(httpmiddleware.CORS(cfg.App.AllowedOrigins))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	api := router.Group("/api")

	// Only the auth endpoints are rate limited; key CRUD, profile, positions,
	// and report answer every authenticated request.
	authRoutes := api.Group("/", httpmiddleware.RateLimit(limiter, logger))
	authHandler.RegisterRoutes(authRoutes)

	protected := api.Group("/", auth.Middleware([]byte(cfg.AccessSecret)))
	for _, kindCfg := range []handlers.KindConfig{handlers.AIKeysConfig, handlers.TradingKeysConfig, handlers.MarketDataKeysConfig} {
		handlers.NewKeyHandler(store, logger, kindCfg).RegisterRoutes(protected)
	}
	profileHandler.RegisterRoutes(protected)
	uploadHandler.RegisterRoutes(protected)
	positionsHandler.RegisterRoutes(protected)
	reportHandler.RegisterRoutes(protected)

	router.Static("/uploads/profile-pictures", cfg.Upload.Dir)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("greed-advisor starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.SSLMode,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func buildLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready *health.Manager) (rate.Limiter, func() error, error) {
	if cfg.RateLimit.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			if cfg.App.Env == "dev" || cfg.App.Env == "test" {
				logger.Warn("redis rate limiter unavailable, falling back to memory", "error", err)
				return newMemoryLimiter(ctx, cfg), func() error { return nil }, nil
			}
			return nil, nil, err
		}

		ready.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return rate.NewRedisLimiter(client, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.Redis.Prefix), client.Close, nil
	}

	return newMemoryLimiter(ctx, cfg), func() error { return nil }, nil
}

func newMemoryLimiter(ctx context.Context, cfg *config.Config) *rate.MemoryLimiter {
	limiter := rate.NewMemory(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	limiter.StartSweeper(ctx, 5*time.Minute)
	return limiter
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
