package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/internal/api"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/database/migrations"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/lock"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	menudb "restaurant-pos/internal/menu/db"
	"restaurant-pos/internal/order"
	orderdb "restaurant-pos/internal/order/db"
	"restaurant-pos/internal/payment"
	paymentdb "restaurant-pos/internal/payment/db"
	"restaurant-pos/internal/table"
	tabledb "restaurant-pos/internal/table/db"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, log *logger.Logger) {
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "AUTO_MIGRATE disabled, assuming schema is current")
		return
	}
	if cfg.Driver == "sqlite" {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		log.Info("DATABASE", "SQLite schema ensured")
		return
	}
	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.MigrationsDir}, log)
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to apply migrations: %v", err))
	}
}

func newPublisher(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) kafka.Publisher {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, domain events will only be logged")
		return kafka.NewLogPublisher(cfg.TopicPrefix, log)
	}
	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Brokers))
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, kafka.Topics(cfg.TopicPrefix), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	return kafka.NewProducer(cfg.Brokers, cfg.TopicPrefix, log)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting restaurant POS service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	prepareSchema(ctx, cfg.Database, bunDB, log)

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = connectRedis(ctx, cfg.Redis, log)
		defer redisClient.Close()
	}

	var c cache.Cache
	if cfg.Cache.Backend == "redis" {
		c = cache.NewRedisCache(redisClient, "pos", log)
		log.Info("CACHE", "Using redis cache")
	} else {
		mem := cache.NewMemoryCache()
		mem.StartJanitor(ctx, cfg.Cache.SweepEvery)
		c = mem
		log.Info("CACHE", "Using in-process cache")
	}

	var locker lock.Locker
	if cfg.Lock.Backend == "redis" {
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, log)
		log.Info("LOCK", fmt.Sprintf("Using redis locks (ttl %s)", cfg.Lock.TTL))
	} else {
		locker = lock.NewKeyedMutex()
		log.Info("LOCK", "Using in-process locks")
	}

	publisher := newPublisher(ctx, cfg.Kafka, log)
	defer publisher.Close()

	exp := cache.Expiration{Absolute: cfg.Cache.AbsoluteTTL, Sliding: cfg.Cache.SlidingTTL}
	handler := api.NewHandler(
		table.NewService(tabledb.New(bunDB), c, locker, publisher, log, table.Options{Expiration: exp, QRBaseURL: cfg.Tables.QRBaseURL}),
		order.NewOrderService(orderdb.New(bunDB), c, locker, publisher, log, exp),
		menu.NewService(menudb.New(bunDB), c, publisher, log, exp),
		payment.NewService(paymentdb.New(bunDB), locker, publisher, log),
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Restaurant POS service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Restaurant POS service shutdown complete")
	}
}
