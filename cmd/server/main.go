package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/basalto/pkg/config"
	"github.com/example/basalto/pkg/discovery"
	"github.com/example/basalto/pkg/models"
	"github.com/example/basalto/pkg/orders"
	"github.com/example/basalto/pkg/repository"
	"github.com/example/basalto/pkg/server"
	"github.com/example/basalto/pkg/wompi"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order backend",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	// Connect to MySQL. TranslateError turns duplicate-key failures into
	// gorm.ErrDuplicatedKey, which the order number retry loop depends on.
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Variant{}, &models.Order{}, &models.OrderItem{}); err != nil {
		logger.Fatal("Failed to migrate", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	}

	// Redis
	redisRepo := repository.NewRedisRepository(&cfg.Redis)

	// MongoDB
	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	ctx := context.Background()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	// Wompi client with the Redis-backed token cache so one grant serves
	// every instance.
	wompiClient := wompi.NewClient(&cfg.Wompi, redisRepo.TokenCache(), logger)

	orderSvc := orders.NewService(db, wompiClient, redisRepo, mongoRepo, &cfg.Shop, logger)

	srv := server.NewServer(cfg, logger, orderSvc, mongoRepo)
	srv.SetupRoutes()

	// Register in etcd when configured; the backend runs fine without it.
	var sd *discovery.ServiceRegistry
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceRegistry(&cfg.Etcd)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without registration", zap.Error(err))
		} else if err := sd.Register(ctx, &discovery.ServiceInstance{
			Name: cfg.Server.Name,
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		}); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd",
				zap.String("name", cfg.Server.Name),
				zap.String("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))
		}
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Fatal("Server error", zap.Error(err))
	}

	if sd != nil {
		if err := sd.Deregister(ctx, &discovery.ServiceInstance{
			Name: cfg.Server.Name,
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		}); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	redisRepo.Close()
	mongoRepo.Close(ctx)

	logger.Info("Service stopped")
}
