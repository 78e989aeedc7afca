// Command conferencectl runs conference operations from the command line
// against the configured DynamoDB table, acting as the user named by the
// token in CONFERENCE_TOKEN.
//
// Usage:
//
//	conferencectl <command> [flags] [args]
//
// Run conferencectl help for the list of commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/conference/announcement"
	"github.com/jacentio/conference/conference"
	"github.com/jacentio/conference/config"
	"github.com/jacentio/conference/identity"
	"github.com/jacentio/conference/internal/metrics"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/notify"
	"github.com/jacentio/conference/registration"
	"github.com/jacentio/conference/store"
)

func main() {
	logger := config.NewLogger()
	if err := run(logger, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		usage(os.Stdout)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	ctx, err = identity.NewVerifier(cfg.JWTSecret).Authenticate(ctx, os.Getenv("CONFERENCE_TOKEN"))
	if err != nil {
		return err
	}

	m, err := metrics.New(prometheus.NewRegistry())
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
	}

	sink := notify.NewAsyncSink(notify.NewMailer(cfg.Mailer(), logger), cfg.Mail.QueueSize, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Warn("pending emails were not sent", "error", err)
		}
	}()

	svc := conference.New(conference.Deps{
		Store:       s,
		Coordinator: registration.New(s, logger, registration.WithRecorder(m)),
		Sink:        sink,
		Cache:       cache,
		Logger:      logger,
	})
	return execute(ctx, svc, args, os.Stdout)
}
