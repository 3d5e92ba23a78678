// Package main
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simplesapien/redirect-resolver/packages/config"
	"github.com/simplesapien/redirect-resolver/packages/crawler"
	"github.com/simplesapien/redirect-resolver/packages/logging"
	"github.com/simplesapien/redirect-resolver/packages/metrics"
	"github.com/simplesapien/redirect-resolver/packages/resolver"
	"github.com/simplesapien/redirect-resolver/packages/server"
	"github.com/simplesapien/redirect-resolver/packages/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logCloser := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Service: "redirector"})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Redirect Resolver ---", "port", cfg.Port, "fetch_timeout", cfg.FetchTimeout.String())

	c, err := crawler.New(crawler.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		ProxyURL:     cfg.ProxyURL,
	})
	if err != nil {
		slog.Error("Failed to initialize fetcher", "error", err)
		os.Exit(1)
	}
	pool := worker.New(resolver.New(c), cfg.MaxWorkers)

	api := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: server.New(pool, server.Options{
			TrimInput:    cfg.TrimInput,
			BatchMaxURLs: cfg.BatchMaxURLs,
		}, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers := []*http.Server{api}
	if cfg.MetricsAddr != "" {
		slog.Info("Exposing Prometheus metrics", "address", cfg.MetricsAddr)
		servers = append(servers, metrics.NewServer(cfg.MetricsAddr))
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("Listening", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutdown signal received. Exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("Server shutdown failed", "address", srv.Addr, "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
