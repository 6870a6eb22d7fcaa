package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/database"
	httpapi "github.com/raimp001/autocase-ai/internal/http"
	"github.com/raimp001/autocase-ai/internal/logger"
	rediscommon "github.com/raimp001/autocase-ai/internal/redis"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/service"
)

func main() {
	// 1. 加载配置
	cfg := config.Load()

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "autocase-core")
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

	// 5. Repository 层
	casesRepo := repository.NewPostgresCasesRepository(db)
	personsRepo := repository.NewPostgresPersonsRepository(db)
	consentsRepo := repository.NewPostgresConsentsRepository(db)
	cohortRepo := repository.NewPostgresCohortRepository(db)
	queriesRepo := repository.NewPostgresRweQueriesRepository(db)

	// 6. 外部协作方客户端
	ledgerClient := service.NewLedgerClient(cfg.Ledger, log)
	paymentClient := service.NewPaymentClient(cfg.Payment, log)
	extractionQueue := service.NewExtractionQueue(redisClient, cfg.Extraction.Stream, log)

	// 7. Service 层
	caseService := service.NewCaseService(casesRepo, personsRepo, cfg.DeidSalt, log)
	consentService := service.NewConsentService(consentsRepo, extractionQueue, ledgerClient, log)
	cohortService := service.NewCohortService(cohortRepo, log)
	royaltyService := service.NewRoyaltyService(queriesRepo, ledgerClient, redisClient, cfg.Royalty, log)

	// 8. HTTP 路由
	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(caseService, cfg.WebhookSecret, log))
	router.RegisterConsentRoutes(httpapi.NewConsentHandler(consentService, log))
	router.RegisterCaseRoutes(httpapi.NewCaseHandler(caseService, log))
	router.RegisterRweRoutes(httpapi.NewRweQueryHandler(cohortService, royaltyService, queriesRepo, paymentClient, cfg.RweJWTSecret, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	// 9. 启动服务（在 goroutine 中）
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Fatal("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server gracefully", zap.Error(err))
	}

	log.Info("autocase-core stopped")
}
