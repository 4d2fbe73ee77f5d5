package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/cache"
	"github.com/recallwatch/recallsearch/internal/config"
	"github.com/recallwatch/recallsearch/internal/db"
	dbMemory "github.com/recallwatch/recallsearch/internal/db/memory"
	dbRedis "github.com/recallwatch/recallsearch/internal/db/redis"
	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	logpkg "github.com/recallwatch/recallsearch/internal/logger"
	"github.com/recallwatch/recallsearch/internal/metrics"
	recordrepo "github.com/recallwatch/recallsearch/internal/repository/record"
	chiTransport "github.com/recallwatch/recallsearch/internal/transport/chi"
	"github.com/recallwatch/recallsearch/internal/transport/httpcache"
	healthuc "github.com/recallwatch/recallsearch/internal/usecase/health"
	ingestuc "github.com/recallwatch/recallsearch/internal/usecase/ingest"
	pageuc "github.com/recallwatch/recallsearch/internal/usecase/page"
	rankeruc "github.com/recallwatch/recallsearch/internal/usecase/ranker"
	"github.com/recallwatch/recallsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recallsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	// Record store
	repo, err := recordrepo.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer repo.Close() //nolint:errcheck // process is exiting

	// Cache backend
	var store db.Store
	switch cfg.Cache.Driver {
	case "memory":
		store = dbMemory.NewStore()
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
	default:
		logger.Fatal("Unknown cache driver", zap.String("driver", cfg.Cache.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache backend not ready", zap.Error(err))
	}
	logger.Info("Connected to cache backend")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// Cursor codec — every replica must share the same secret
	codec, err := cursor.NewCodec([]byte(cfg.Search.CursorSecret))
	if err != nil {
		logger.Fatal("Failed to create cursor codec", zap.Error(err))
	}

	micro := cache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.SearchCacheTotal, logger)

	// Use case services
	ranker := rankeruc.New(repo).WithSimilarityFloor(cfg.Search.SimilarityFloor)
	pages := pageuc.New(ranker, micro, codec).
		WithCursorTTL(time.Duration(cfg.Search.CursorTTLMin) * time.Minute).
		WithRetry(cfg.Search.RetryAttempts, 0)
	ingest := ingestuc.New(repo, micro, metrics.IngestRecordsTotal, logger).
		WithEpochGauge(metrics.CacheEpoch).
		WithMaxBatchSize(cfg.Ingest.MaxBatchSize)
	health := healthuc.New(repo, store)

	server := chiTransport.NewServer(pages, ingest, repo, health, logger).
		WithCachePolicies(
			httpcache.Policy{MaxAge: time.Duration(cfg.Search.ListTTLSec) * time.Second},
			httpcache.Policy{
				MaxAge:               time.Duration(cfg.Search.DetailTTLSec) * time.Second,
				StaleWhileRevalidate: time.Duration(cfg.Search.DetailSWRSec) * time.Second,
			},
		).
		WithAPIKeys(cfg.Auth.APIKeys)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
