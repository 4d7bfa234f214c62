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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/config"
	"github.com/civica-cloud/secoql/internal/db"
	dbRedis "github.com/civica-cloud/secoql/internal/db/redis"
	logpkg "github.com/civica-cloud/secoql/internal/logger"
	"github.com/civica-cloud/secoql/internal/metrics"
	entityrepo "github.com/civica-cloud/secoql/internal/repository/entity"
	"github.com/civica-cloud/secoql/internal/repository/history"
	"github.com/civica-cloud/secoql/internal/repository/resultcache"
	chiTransport "github.com/civica-cloud/secoql/internal/transport/chi"
	openaiTransport "github.com/civica-cloud/secoql/internal/transport/openai"
	"github.com/civica-cloud/secoql/internal/transport/socrata"
	healthuc "github.com/civica-cloud/secoql/internal/usecase/health"
	intentuc "github.com/civica-cloud/secoql/internal/usecase/intent"
	resolveuc "github.com/civica-cloud/secoql/internal/usecase/resolve"
	searchuc "github.com/civica-cloud/secoql/internal/usecase/search"
	soqluc "github.com/civica-cloud/secoql/internal/usecase/soql"
	"github.com/civica-cloud/secoql/internal/version"
)

func main() {
	_ = godotenv.Load()

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

	logger.Info("Starting secoql API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("socrata_domain", cfg.Socrata.Domain),
	)

	ctx := context.Background()

	// Redis is optional: without it the service runs with neither the
	// result cache nor the entity index.
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
		store = redisStore
	} else {
		logger.Warn("No database configured; result cache and entity index disabled")
	}

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Intent parsing: model path is optional, heuristics always available.
	var generator intentuc.Generator
	var llmChecker healthuc.LLMChecker
	if cfg.LLM.APIKey != "" && cfg.LLM.Model != "" {
		gen := openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		generator = gen
		llmChecker = gen
		logger.Info("Intent model configured", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Info("No intent model configured; using heuristic parsing")
	}
	parser := intentuc.New(generator, logger)

	// Entity resolution: requires both the embedding provider and Redis.
	var searcher resolveuc.Searcher
	if store != nil && cfg.Embed.APIKey != "" && cfg.Embed.Model != "" {
		embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedConfig{
			APIKey:     cfg.Embed.APIKey,
			BaseURL:    cfg.Embed.BaseURL,
			Model:      cfg.Embed.Model,
			Dimensions: cfg.Embed.Dimensions,
			Logger:     logger,
		})
		repo := entityrepo.New(store, embedder, cfg.Embed.Dimensions, logger)
		if err := repo.EnsureIndex(ctx); err != nil {
			logger.Warn("Failed to ensure entity index", zap.Error(err))
		}
		searcher = repo
		logger.Info("Entity index configured", zap.String("model", cfg.Embed.Model))
	}

	var reranker resolveuc.Reranker
	if cfg.Rerank.Model != "" {
		reranker = openaiTransport.NewReranker(&openaiTransport.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.Rerank.Model,
			Logger:  logger,
		})
		logger.Info("Reranker configured", zap.String("model", cfg.Rerank.Model))
	}
	resolver := resolveuc.New(searcher, reranker, logger)

	compiler := soqluc.New(cfg.Socrata.Datasets)

	socrataClient := socrata.New(&socrata.Config{
		Domain:   cfg.Socrata.Domain,
		AppToken: cfg.Socrata.AppToken,
		Timeout:  time.Duration(cfg.Socrata.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	var cacheStore db.KVStore
	if store != nil {
		cacheStore = store
	}
	executor := resultcache.New(
		socrataClient,
		cacheStore,
		time.Duration(cfg.Socrata.CacheTTLSec)*time.Second,
		cfg.Socrata.MaxRetries,
		time.Duration(cfg.Socrata.RetryBackoffMS)*time.Millisecond,
		metrics.ResultCacheTotal,
		logger,
	)

	historyStore, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open history store", zap.Error(err))
	}
	defer historyStore.Close()

	searchSvc := searchuc.New(
		parser, resolver, compiler, executor, historyStore, cfg.Resolver.TopK, logger,
	)

	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, llmChecker, socrataClient)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

			// chi.middleware.RequestID already placed request_id in context
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
