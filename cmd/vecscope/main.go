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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vecscope/vecscope/internal/browser"
	"github.com/vecscope/vecscope/internal/catalog"
	"github.com/vecscope/vecscope/internal/config"
	"github.com/vecscope/vecscope/internal/domain"
	logpkg "github.com/vecscope/vecscope/internal/logger"
	"github.com/vecscope/vecscope/internal/metrics"
	"github.com/vecscope/vecscope/internal/repository/records"
	"github.com/vecscope/vecscope/internal/store"
	storeQdrant "github.com/vecscope/vecscope/internal/store/qdrant"
	storeRedis "github.com/vecscope/vecscope/internal/store/redis"
	chiTransport "github.com/vecscope/vecscope/internal/transport/chi"
	openaiEmb "github.com/vecscope/vecscope/internal/transport/openai"
	"github.com/vecscope/vecscope/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:          "vecscope",
		Short:        "Browse and search vector-record collections",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vecscope %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(*cobra.Command, []string) error {
			return serve()
		},
	}
}

func serve() error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecscope API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_driver", cfg.Store.Driver),
	)

	backend, err := newBackend(cfg.Store)
	if err != nil {
		logger.Fatal("Failed to create record store", zap.Error(err))
	}
	defer backend.Close()

	ctx := context.Background()
	if err := backend.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Record store not ready", zap.Error(err))
	}
	logger.Info("Connected to record store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterBrowserMetrics()

	embedder, health := buildQueryEmbedder(cfg.Embedding, logger)

	repo := records.New(backend, embedder)
	cat := catalog.New(repo)
	sessions := chiTransport.NewSessionManager()

	opts := browser.Options{
		PageSize:    cfg.Browse.DefaultPageSize,
		SearchLimit: cfg.Browse.SearchLimit,
	}
	server := chiTransport.NewServer(repo, cat, sessions, backend, health, logger, opts)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

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
	return nil
}

// newBackend creates the record store selected by the driver setting.
func newBackend(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "redis":
		return storeRedis.NewStore(storeRedis.Config{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
	case "qdrant":
		return storeQdrant.NewStore(storeQdrant.Config{
			URL:    cfg.URL,
			APIKey: cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// buildQueryEmbedder assembles the query embedder from the configured
// vectorizer, or returns nil when semantic search is disabled.
func buildQueryEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, domain.HealthChecker) {
	if cfg.Vectorizer == "" {
		logger.Info("Semantic search disabled: no vectorizer configured")
		return nil, nil
	}

	vecCfg := cfg.Vectorizers[cfg.Vectorizer]
	provCfg := cfg.Providers[vecCfg.Provider]

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   vecCfg.Provider,
	})

	logger.Info("Query embedder created",
		zap.String("provider", vecCfg.Provider),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	// Instruction prefix for providers with asymmetric query instructions
	if vecCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(base, vecCfg.QueryInstruction), base
	}
	return base, base
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
