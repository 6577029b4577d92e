package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"SportMatchService/config"
	"SportMatchService/internal/database/seed"
	"SportMatchService/internal/delivery/grpc"
	"SportMatchService/internal/delivery/httpapi"
	"SportMatchService/internal/events"
	"SportMatchService/internal/repository/postgres"
	"SportMatchService/internal/repository/redis"
	"SportMatchService/internal/service"
	"SportMatchService/pkg/database"
	"SportMatchService/pkg/logger"
	"SportMatchService/pkg/server"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Версия сервиса
const (
	ServiceVersion = "1.0.0"
)

func main() {
	// Инициализация логгера
	log := logger.NewLogger()
	defer func() { _ = log.Sync() }()
	log.Info("Starting sport match service", zap.String("version", ServiceVersion))

	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Определение номеров портов
	grpcPort := cfg.GRPC.Port
	healthPort := grpcPort + 100
	metricsPort := grpcPort + 200

	ctx := context.Background()
	gracefulShutdown := server.NewGracefulShutdown(log, 30*time.Second)

	// Подключение к PostgreSQL: без базы сервис не запускается
	db, err := database.NewPostgresDB(ctx, cfg.Postgres, cfg.Resilience, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	// Подключение к Redis: без кэша сервис работает в деградированном режиме
	var redisClient *goredis.Client
	if client, err := database.NewRedisClient(ctx, cfg.Redis, cfg.Resilience, log); err != nil {
		log.Warn("Redis is unavailable, running without cache and match locks", zap.Error(err))
	} else {
		redisClient = client
	}

	healthChecker := database.NewDatabaseHealthChecker(db, redisClient, cfg.Resilience, log)
	gracefulShutdown.AddShutdownFunc("storage", func(ctx context.Context) error {
		return healthChecker.Close()
	})

	// Инициализация отказоустойчивых репозиториев
	userRepo := postgres.NewResilientUserRepository(postgres.NewUserRepository(db), healthChecker, log)
	var cacheRepo service.CacheRepositoryInterface = service.NoopCache{}
	if redisClient != nil {
		cacheRepo = redis.NewResilientCacheRepository(redis.NewCacheRepository(redisClient, cfg.Cache.UserTTL), healthChecker, log)
	}

	if err := seed.NewDevEnvironmentSeeder(userRepo, log).SeedAllDevData(ctx); err != nil {
		log.Warn("Failed to seed development data", zap.Error(err))
	}

	// Публикация событий о созданных парах
	publisher, err := events.Connect(ctx, cfg.RabbitMQ, cfg.Resilience, log)
	if err != nil {
		log.Warn("RabbitMQ is unavailable, match events are disabled", zap.Error(err))
		publisher = events.NoopPublisher{}
	}
	gracefulShutdown.AddShutdownFunc("rabbitmq", func(ctx context.Context) error {
		return publisher.Close()
	})

	// Инициализация сервисов
	profileService := service.NewProfileService(userRepo, cacheRepo, cfg.Matching.Sports, log)
	matchService := service.NewMatchService(userRepo, cacheRepo, publisher, service.MatchOptions{
		MaxCommitAttempts: cfg.Matching.MaxCommitAttempts,
		LockTTL:           cfg.Matching.LockTTL,
	}, log)

	// Сервер метрик Prometheus
	metricsServer := server.MetricsServer(metricsPort, log)
	gracefulShutdown.AddShutdownFunc("metrics", func(ctx context.Context) error {
		return metricsServer.Shutdown(ctx)
	})

	// gRPC сервер
	grpcServer := grpc.NewServer(grpc.NewMatchHandler(profileService, matchService, log), log, grpcPort)
	go func() {
		if err := grpcServer.Run(); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
			gracefulShutdown.Trigger()
		}
	}()
	gracefulShutdown.AddShutdownFunc("grpc", func(ctx context.Context) error {
		grpcServer.Stop()
		return nil
	})

	// HTTP API для Mini App
	router := httpapi.NewRouter(profileService, matchService, cfg.HTTP.AllowedOrigins, log)
	httpServer := httpapi.NewServer(fmt.Sprintf(":%d", cfg.HTTP.Port), router)
	go func() {
		log.Info("Starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", zap.Error(err))
			gracefulShutdown.Trigger()
		}
	}()
	gracefulShutdown.AddShutdownFunc("http", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	// Проверка здоровья: HTTP эндпоинты и статус grpc.health.v1
	healthCheck := server.NewHealthCheck(healthChecker, log, ServiceVersion)
	healthCheck.OnReadyChange(grpcServer.SetServing)
	healthCheck.StartServer(healthPort)
	gracefulShutdown.AddShutdownFunc("health", func(ctx context.Context) error {
		return healthCheck.Stop(ctx)
	})

	hostname, _ := os.Hostname()
	log.Info("Service started",
		zap.Int("grpc_port", grpcPort),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("health_port", healthPort),
		zap.Int("metrics_port", metricsPort),
		zap.String("version", ServiceVersion),
		zap.Int("pid", os.Getpid()),
		zap.String("hostname", hostname))

	// Ожидаем сигнала остановки
	if err := gracefulShutdown.Wait(ctx); err != nil {
		log.Error("Shutdown completed with errors", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Service stopped")
}
