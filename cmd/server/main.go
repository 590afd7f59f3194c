// Command server starts the otodoki track suggestions HTTP server and
// its background replenishment worker.
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

	"github.com/otodoki/otodoki/internal/adapter/catalog/itunes"
	"github.com/otodoki/otodoki/internal/adapter/chart/applerss"
	httpserver "github.com/otodoki/otodoki/internal/adapter/httpserver"
	"github.com/otodoki/otodoki/internal/adapter/llm/gemini"
	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/app"
	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
	"github.com/otodoki/otodoki/internal/queue"
	"github.com/otodoki/otodoki/internal/service/ratelimiter"
	"github.com/otodoki/otodoki/internal/strategy"
	"github.com/otodoki/otodoki/internal/usecase"
	"github.com/otodoki/otodoki/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Track queue
	q := queue.New(cfg.QueueMaxCapacity, cfg.QueueLowWatermark)
	if !queue.SelfCheck(q) {
		slog.Error("queue self-check failed")
		os.Exit(1)
	}

	// Catalog access
	catalog := itunes.New(cfg)
	normalizer := itunes.NewNormalizer(time.Minute)

	// Keyword sources for the strategy rotator. The LLM client is
	// optional; without an API key the strategy is skipped.
	var keywords domain.KeywordGenerator
	if gem, err := gemini.New(cfg); err != nil {
		slog.Info("keyword generation service unavailable", slog.Any("error", err))
	} else {
		keywords = gem
	}

	strategies := strategy.BuildAll(strategy.Deps{
		Cfg:      cfg,
		Chart:    applerss.New(),
		Keywords: keywords,
	}, cfg.SearchStrategy)
	if len(strategies) == 0 {
		slog.Error("no search strategies available")
		os.Exit(1)
	}
	rotator := strategy.NewRotator(strategies)

	// Replenishment worker
	w := worker.New(cfg, q, catalog, normalizer, rotator)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go w.Run(workerCtx)

	// Request path
	limiter := ratelimiter.New(cfg.RateLimitPerSec, time.Second)
	suggestions := usecase.NewSuggestionsService(q, w, cfg.SuggestionsDefaultLimit, cfg.SuggestionsMaxLimit)

	srv := httpserver.NewServer(cfg, suggestions, q, w, limiter)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
