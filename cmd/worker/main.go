package main

import (
	"context"
	"os/signal"
	"syscall"

	"rollbook/internal/activity"
	"rollbook/internal/config"
	"rollbook/internal/logging"
	"rollbook/internal/queue"
	"rollbook/internal/records"
	"rollbook/internal/store"
)

// Worker drains activity messages published by API instances into the feed.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.CheckWorker(); err != nil {
		log.Fatal().Err(err).Str("queue", cfg.QueueBackend).Str("store", cfg.StoreBackend).Msg("worker misconfigured")
	}

	kv, err := store.Open(store.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		KeyPrefix:   cfg.KeyPrefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer kv.Close()

	client := store.NewRedis(cfg.RedisAddr, "").Client
	if r, ok := kv.(*store.Redis); ok {
		client = r.Client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not reachable yet; consumer will retry")
	}

	q := queue.NewRedisQueue(client, cfg.QueueKey)
	feed := activity.NewFeed(records.New(kv, log))

	log.Info().Str("key", cfg.QueueKey).Msg("worker started, waiting for messages")
	if err := activity.Drain(ctx, q, feed, log); err != nil {
		log.Error().Err(err).Msg("drain failed")
	}
	log.Info().Msg("worker stopped")
}
