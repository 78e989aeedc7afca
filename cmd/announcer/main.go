// Command announcer keeps the nearly-sold-out announcement fresh. It
// recomputes the announcement on start and then on every
// ANNOUNCEMENT_INTERVAL until interrupted.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacentio/conference/announcement"
	"github.com/jacentio/conference/config"
	"github.com/jacentio/conference/internal/metrics"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
)

func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("announcer exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.AnnouncementInterval <= 0 {
		return fmt.Errorf("announcement interval must be positive, got %s", cfg.AnnouncementInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	client, err := store.NewClient(ctx, cfg.Client())
	if err != nil {
		return err
	}
	storeCfg := cfg.Store()
	storeCfg.Observer = m
	s := store.NewWithRegistry(client, storeCfg, model.Registry())

	var cache announcement.Cache = announcement.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rdb, err := announcement.DialRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = announcement.NewRedisCache(rdb, cfg.Redis.Prefix, 0)
	} else {
		logger.Warn("REDIS_ADDR not set, announcement is only kept in process memory")
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("announcer started",
		"table", storeCfg.Table,
		"interval", cfg.AnnouncementInterval,
	)
	err = announcement.NewRefresher(s, cache, logger).Run(ctx, cfg.AnnouncementInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
