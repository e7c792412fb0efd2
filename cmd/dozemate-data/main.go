package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/config"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/database"
	httpapi "github.com/iammayankpratapsingh/dozemate-backend/internal/http"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/logger"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/metrics"
	mqttconsumer "github.com/iammayankpratapsingh/dozemate-backend/internal/mqtt"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/mqttclient"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/rules"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/service"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/store"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/streams"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/tracker"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "dozemate-data")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting dozemate-data service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("http_address", cfg.HTTP.Address),
		zap.String("stream", cfg.Vitals.Stream),
	)

	// 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// 规则表
	table := rules.Default()
	if cfg.Vitals.RulesFile != "" {
		table, err = rules.LoadFile(cfg.Vitals.RulesFile)
		if err != nil {
			zapLogger.Fatal("Failed to load rules file", zap.Error(err))
		}
		zapLogger.Info("Loaded rules file", zap.String("path", cfg.Vitals.RulesFile))
	}

	// Repository
	devicesRepo := repository.NewPostgresDevicesRepo(db)
	usersRepo := repository.NewPostgresUsersRepo(db)
	telemetryRepo := repository.NewPostgresTelemetryRepo(db)

	// 指标
	metrics.Init()

	// 设备查询缓存
	deviceCache := store.NewDeviceCache(
		store.NewRedisKV(redisClient),
		time.Duration(cfg.Vitals.DeviceCacheTTL)*time.Second,
		zapLogger,
	)

	// 入库管道
	pipeline := service.NewPipelineService(devicesRepo, telemetryRepo, tracker.New(), table, zapLogger)
	pipeline.SetPublisher(streams.NewPublisher(redisClient, cfg.Vitals.Stream, zapLogger))
	pipeline.SetDeviceCache(deviceCache)

	// 激活状态机
	deviceService := service.NewDeviceService(devicesRepo, usersRepo, zapLogger)
	deviceService.SetCacheInvalidator(deviceCache)
	if cfg.Vendor.BaseURL != "" {
		deviceService.SetVendorNotifier(service.NewVendorClient(
			cfg.Vendor.BaseURL, cfg.Vendor.AppID, cfg.Vendor.SecretKey, zapLogger,
		))
	}

	// HTTP
	router := httpapi.NewRouter(zapLogger)
	router.RegisterIngestRoutes(httpapi.NewIngestHandler(pipeline, zapLogger))
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetryRepo, zapLogger))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(deviceService, zapLogger))
	router.RegisterAdminRoutes(httpapi.NewAdminDevicesHandler(deviceService, zapLogger))
	router.HandleHandler("/metrics", metrics.Handler())

	server := service.NewServer(cfg.HTTP.Address, router, zapLogger)

	// MQTT
	mqttClient, err := mqttclient.NewClient(&cfg.MQTT, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	consumer := mqttconsumer.NewConsumer(mqttClient, pipeline, cfg.MQTT.QoS, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start MQTT consumer", zap.Error(err))
		}
	}()
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := consumer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error stopping MQTT consumer", zap.Error(err))
	}
	if err := server.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error stopping HTTP server", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
