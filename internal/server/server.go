package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/newsbrief/config"
	"github.com/mohammad-safakhou/newsbrief/internal/aggregator"
	"github.com/mohammad-safakhou/newsbrief/internal/feeds"
	"github.com/mohammad-safakhou/newsbrief/internal/llm"
	"github.com/mohammad-safakhou/newsbrief/internal/runtime"
	"github.com/mohammad-safakhou/newsbrief/internal/store"
	"github.com/mohammad-safakhou/newsbrief/internal/summarize"
	"github.com/mohammad-safakhou/newsbrief/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// New builds the echo instance with middleware, error handling and routes.
func New(h *NewsHandler, secret []byte, metricsEnabled bool, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if metricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	h.Register(e.Group("/topics"), secret)
	return e
}

// Run wires storage, feeds, the job store and the synthesis pipeline, then
// serves until SIGINT/SIGTERM. In-flight synthesis jobs are awaited on shutdown.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		logger.Printf("warn: migrations not applied: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer func() { _ = st.Close() }()

	jobStore, closeJobs, err := runtime.NewJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeJobs() }()

	agg := aggregator.New(feeds.NewFetcher(cfg.Feeds, nil), cfg.Feeds, cfg.Aggregate)
	h := &NewsHandler{
		Topics:    st,
		Agg:       agg,
		Jobs:      jobStore,
		Validator: feeds.NewValidator(cfg.Feeds, nil),
		Logger:    logger,
	}

	var proc *worker.Processor
	client, err := llm.New(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Printf("warn: llm api key not configured; synthesis requests will be rejected")
	case err != nil:
		return err
	default:
		proc = worker.NewProcessor(nil, jobStore, st, agg, summarize.New(client, cfg.Summarize, nil))
		h.Submitter = proc
	}

	e := New(h, secret, cfg.Telemetry.MetricsEnabled, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (jobs backend: %s)", cfg.Server.Address, cfg.Jobs.Backend)
		errCh <- e.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Printf("warn: shutdown: %v", err)
	}
	if proc != nil {
		proc.Wait()
	}
	return nil
}
