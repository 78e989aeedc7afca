// Command streamhandler is the Lambda entry point for the entity table's
// DynamoDB stream. It refreshes the nearly-sold-out announcement whenever a
// batch changes a conference's seat availability.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/conference/announcement"
	"github.com/jacentio/conference/config"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
	"github.com/jacentio/conference/stream"
)

func main() {
	logger := config.NewLogger()
	handler, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Error("failed to initialize stream handler", "error", err)
		os.Exit(1)
	}
	lambda.Start(handler.HandleSeatChanges)
}

func newHandler(ctx context.Context, logger *slog.Logger) (*stream.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, err := store.NewClient(ctx, cfg.Client())
	if err != nil {
		return nil, err
	}
	s := store.NewWithRegistry(client, cfg.Store(), model.Registry())

	var cache announcement.Cache = announcement.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rdb, err := announcement.DialRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		cache = announcement.NewRedisCache(rdb, cfg.Redis.Prefix, 0)
	} else {
		logger.Warn("REDIS_ADDR not set, refreshed announcements are not shared")
	}

	return stream.NewHandler(announcement.NewRefresher(s, cache, logger), logger), nil
}
