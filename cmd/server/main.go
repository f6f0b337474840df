// Package main is the entry point for the messaging and notification server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/XuanDongVo/Rental-Home-sub001/database/connect"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/config"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/server"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/chat"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/notification"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/user"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/logger"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: "rental-home-messaging",
	})
	defer func() {
		if err := log.Sync(); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to sync logger", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connect.ConnectPostgres(ctx, log, cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var cache *redis.Cache
	if cfg.RedisHost != "" {
		redisClient, err := redis.NewClient(redis.Config{
			Host:         cfg.RedisHost,
			Port:         cfg.RedisPort,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
			MaxRetries:   cfg.RedisMaxRetries,
		}, log)
		if err != nil {
			log.Warn("redis unavailable, continuing without directory cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redis.NewCache(redisClient, "rental-home", "chat")
		}
	}

	directory := user.NewSQLDirectory(db, log, cache)
	dispatcher := notification.NewDispatcher(log)
	notificationSvc := notification.NewService(log, notification.NewRepository(db, log), dispatcher)
	chatSvc := chat.NewService(log, chat.NewRepository(db, log), directory, notificationSvc)

	router := server.NewRouter(log, cfg.JWTSecret, server.Deps{
		Chat:          chatSvc,
		Notifications: notificationSvc,
		Users:         directory,
	})
	appServer := server.NewHTTPServer(":"+cfg.AppPort, router)
	metricsServer := server.NewMetricsServer(":" + cfg.MetricsPort)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@hourly", func() {
		if _, err := notificationSvc.CleanupExpired(context.Background(), cfg.NotificationRetention); err != nil {
			log.Error("notification cleanup failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("failed to schedule notification cleanup", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", zap.String("addr", appServer.Addr))
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics server", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		server.Shutdown(log, appServer)
		server.Shutdown(log, metricsServer)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}
