package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/consumer"
	"github.com/raimp001/autocase-ai/internal/database"
	"github.com/raimp001/autocase-ai/internal/logger"
	rediscommon "github.com/raimp001/autocase-ai/internal/redis"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/service"
)

func main() {
	// 1. 加载配置
	cfg := config.Load()

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "autocase-extractor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 数据库连接
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// 4. Redis 连接
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rediscommon.Close(redisClient)

	// 5. 依赖装配
	casesRepo := repository.NewPostgresCasesRepository(db)
	personsRepo := repository.NewPostgresPersonsRepository(db)
	extractionClient := service.NewExtractionClient(cfg.Extraction, log)
	extractionQueue := service.NewExtractionQueue(redisClient, cfg.Extraction.Stream, log)

	extractionConsumer := consumer.NewExtractionConsumer(
		cfg,
		redisClient,
		casesRepo,
		personsRepo,
		extractionClient,
		extractionQueue,
		log,
	)

	// 6. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. 启动消费循环（在 goroutine 中）
	consumerErrChan := make(chan error, 1)
	go func() {
		if err := extractionConsumer.Start(ctx); err != nil {
			consumerErrChan <- err
		}
	}()

	// 8. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-consumerErrChan:
		log.Fatal("Consumer error", zap.Error(err))
	}

	log.Info("autocase-extractor stopped")
}
