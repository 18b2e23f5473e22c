package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/securescript/securescript-api/internal/application"
	appanalysis "github.com/securescript/securescript-api/internal/application/analysis"
	"github.com/securescript/securescript-api/internal/config"
	"github.com/securescript/securescript-api/internal/infra/ai/groq"
	"github.com/securescript/securescript-api/internal/infra/httpserver"
	quotamem "github.com/securescript/securescript-api/internal/infra/quota/memory"
	"github.com/securescript/securescript-api/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("config load error", zap.Error(err))
	}
	if cfg.Groq.APIKey == "" {
		logger.Warn("GROQ_API_KEY not set, upstream calls will fail")
	}

	// init upstream client
	client := groq.NewClient(cfg.Groq.APIKey, cfg.Groq.BaseURL, cfg.Groq.Model, cfg.Groq.MaxTokens)

	// init service
	svc := appanalysis.NewService(client)

	// init quota store (in-memory, fixed 24h window)
	store := quotamem.New(cfg.Quota.DailyLimit, 24*time.Hour, application.SystemClock{})

	// init identity provider keys
	var keys *middleware.JWKSCache
	if cfg.Auth.JWKSURL != "" {
		keys = middleware.NewJWKSCache(cfg.Auth.JWKSURL)
	} else if cfg.Auth.RequireVerification {
		logger.Fatal("auth misconfiguration: requireVerification is on but no JWKS URL is set")
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		Quota: store,
		Auth: middleware.AuthConfig{
			Keys:                keys,
			RequireVerification: cfg.Auth.RequireVerification,
			RequireAPIKey:       cfg.Auth.RequireAPIKey,
			APIKeys:             cfg.Auth.APIKeys,
		},
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		UpstreamAPIKey: cfg.Groq.APIKey,
		UpstreamWait:   time.Duration(cfg.Groq.Timeout) * time.Second,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout must outlast a whole fix stream.
		WriteTimeout: time.Duration(cfg.Groq.Timeout+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
