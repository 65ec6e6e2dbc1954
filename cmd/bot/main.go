package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/dialog"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/seed"
	"github.com/oggyb/matchbot/internal/server"
	"github.com/oggyb/matchbot/internal/session"
	"github.com/oggyb/matchbot/internal/telegram"
	"github.com/oggyb/matchbot/internal/worker"
)

const healthInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return err
	}

	// Sessions live in memory unless Redis is configured
	var (
		redisCache *cache.RedisCache
		store      session.Store = session.NewMemoryStore()
	)
	if cfg.Session.Backend == "redis" {
		redisCache = cache.NewRedisCache(cfg)
		if err := redisCache.Ping(ctx); err != nil {
			log.Error("failed to connect to redis", "err", err)
			return err
		}
		defer redisCache.Close()
		store = session.NewRedisStore(redisCache, cfg.Session.TTL)
	}

	client, err := telegram.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to init telegram client", "err", err)
		return err
	}

	appCtx := app.New(cfg, database, redisCache, log, client)

	if cfg.App.ENV == "development" {
		if _, err := seed.Run(ctx, database, log, seed.DefaultOptions()); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	engine := dialog.NewEngine(appCtx, store)
	dispatcher := dialog.NewDispatcher(engine, log)

	scheduler := worker.NewScheduler(log)
	for _, job := range worker.DefaultJobs(appCtx, engine.Notifier(), engine.Admin()) {
		scheduler.Add(job)
	}
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	if cfg.GRPC.Enabled {
		health := server.NewHealthRegistrar(appCtx)
		wg.Add(2)
		go func() {
			defer wg.Done()
			health.Watch(ctx, healthInterval)
		}()
		go func() {
			defer wg.Done()
			log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
			if err := server.StartGRPCServer(ctx, cfg, health); err != nil {
				log.Error("gRPC server failed", "err", err)
				stop()
			}
		}()
	}

	// Updates arrive by webhook when a public URL is configured, by long
	// polling otherwise
	var webhook http.Handler
	if cfg.UseWebhook() {
		if err := client.SetWebhook(cfg.Bot.WebhookURL); err != nil {
			log.Error("failed to register webhook", "err", err)
			return err
		}
		webhook = client.WebhookHandler(dispatcher.Submit)
	}
	router := server.NewRouter(appCtx, webhook)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting HTTP server", "port", cfg.HTTP.Port)
		if err := server.StartHTTPServer(ctx, cfg.HTTP.Port, router); err != nil {
			log.Error("HTTP server failed", "err", err)
			stop()
		}
	}()

	if !cfg.UseWebhook() {
		if err := client.Poll(ctx, dispatcher.Submit); err != nil {
			log.Error("polling failed", "err", err)
			stop()
		}
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	dispatcher.Wait()
	scheduler.Wait()
	return nil
}
