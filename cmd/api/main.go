package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rollbook/internal/activity"
	"rollbook/internal/attendance"
	"rollbook/internal/cloudinary"
	"rollbook/internal/config"
	"rollbook/internal/handler"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/logging"
	"rollbook/internal/queue"
	"rollbook/internal/records"
	"rollbook/internal/roster"
	"rollbook/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func run(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(store.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		KeyPrefix:   cfg.KeyPrefix,
	})
	if err != nil {
		return err
	}
	defer kv.Close()
	log.Info().Str("backend", cfg.StoreBackend).Msg("store opened")

	recs := records.New(kv, log)
	feed := activity.NewFeed(recs)

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient(cfg, kv), cfg.QueueKey)
		log.Info().Str("key", cfg.QueueKey).Msg("activity queue on redis; run the worker to fill the feed")
	} else {
		q = queue.NewInMemory(64)
		go func() {
			if err := activity.Drain(ctx, q, feed, log); err != nil {
				log.Error().Err(err).Msg("activity drain stopped")
			}
		}()
	}
	publisher := activity.NewPublisher(q, log)

	var photos roster.PhotoEncoder
	if cfg.CloudinaryEnabled() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Info().Str("cloud", cfg.CloudinaryCloudName).Msg("photos stored on cloudinary")
	} else {
		log.Info().Msg("cloudinary not configured; photos stored inline")
	}

	rs := roster.NewService(recs, photos, publisher, log)
	ledger := attendance.NewLedger(attendance.NewRepository(recs), publisher, log)
	h := handler.New(recs, rs, ledger, feed, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		MaxAge:           24 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

// redisClient reuses the store's connection when the store is on redis too.
func redisClient(cfg config.App, kv store.KV) *redis.Client {
	if r, ok := kv.(*store.Redis); ok {
		return r.Client
	}
	return store.NewRedis(cfg.RedisAddr, "").Client
}
