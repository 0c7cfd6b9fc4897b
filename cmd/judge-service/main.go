package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	commonmw "judgeflow/internal/common/http/middleware"
	"judgeflow/internal/common/mq"
	"judgeflow/internal/common/storage"
	"judgeflow/internal/judging/controller"
	"judgeflow/internal/judging/executor"
	"judgeflow/internal/judging/repository"
	"judgeflow/internal/judging/service"
	"judgeflow/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/judge_service.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", defaultEnvFile, "Optional dotenv file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis failed: %w", err)
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		return fmt.Errorf("init minio failed: %w", err)
	}

	var publisher repository.VerdictPublisher
	if len(appCfg.Events.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaQueue(appCfg.Events.Kafka)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = repository.NewMQVerdictPublisher(producer, appCfg.Events.Topic)
	} else {
		logger.Warn(ctx, "no kafka brokers configured, final verdict events are disabled")
	}

	fixtureStore, err := repository.NewObjectFixtureStore(objStorage, redisCache, appCfg.Fixtures)
	if err != nil {
		return fmt.Errorf("init fixture store failed: %w", err)
	}
	submissionRepo := repository.NewSubmissionRepositoryWithTTL(mysqlDB, redisCache, appCfg.Judging.CacheTTL.Submission)
	resultRepo := repository.NewResultRepository(mysqlDB)
	problemRepo := repository.NewProblemRepositoryWithTTL(mysqlDB, redisCache, appCfg.Judging.CacheTTL.Problem, appCfg.Judging.CacheTTL.ProblemEmpty)

	judge0, err := executor.NewJudge0Client(appCfg.Judge0)
	if err != nil {
		return fmt.Errorf("init judge0 client failed: %w", err)
	}
	signer, err := executor.NewCallbackSigner(appCfg.Callback)
	if err != nil {
		return fmt.Errorf("init callback signer failed: %w", err)
	}
	if !signer.Signed() {
		logger.Warn(ctx, "callback secret is empty, webhook signatures are not verified")
	}

	dispatcher, err := service.NewDispatcher(service.DispatcherConfig{
		Client:    judge0,
		Callbacks: signer,
		MaxWidth:  appCfg.Judging.Dispatch.MaxWidth,
		Timeout:   appCfg.Judging.Timeouts.Dispatch,
	})
	if err != nil {
		return fmt.Errorf("init dispatcher failed: %w", err)
	}

	judgingService, err := service.NewJudgingService(service.Config{
		Submissions:    submissionRepo,
		Results:        resultRepo,
		Problems:       problemRepo,
		Fixtures:       fixtureStore,
		Tx:             mysqlDB,
		Dispatcher:     dispatcher,
		Callbacks:      signer,
		Cache:          redisCache,
		Publisher:      publisher,
		Policies:       appCfg.Judging.Policies,
		MaxCodeBytes:   appCfg.Judging.MaxCodeBytes,
		IdempotencyTTL: appCfg.Judging.IdempotencyTTL,
		RateLimit:      appCfg.Judging.RateLimit,
		Timeouts:       appCfg.Judging.Timeouts,
	})
	if err != nil {
		return fmt.Errorf("init judging service failed: %w", err)
	}

	var supervisor service.TimeoutSupervisor = service.NoopSupervisor{}
	if appCfg.Supervisor.Enabled {
		supervisor, err = service.NewSweepSupervisor(service.SupervisorConfig{
			Submissions: submissionRepo,
			Results:     resultRepo,
			Cache:       redisCache,
			Publisher:   publisher,
			Policies:    appCfg.Judging.Policies,
			Interval:    appCfg.Supervisor.Interval,
			Grace:       appCfg.Supervisor.Grace,
			BatchSize:   appCfg.Supervisor.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("init timeout supervisor failed: %w", err)
		}
	}

	var simulator *executor.Simulator
	if appCfg.Simulator.Enabled {
		simulator = executor.NewSimulator(appCfg.Simulator)
		logger.Info(ctx, "execution simulator enabled", zap.String("judge0_url", appCfg.Judge0.BaseURL))
	}

	httpServer := buildHTTPServer(appCfg.Server, judgingService, simulator)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := supervisor.Run(shutdownCtx); err != nil {
			logger.Error(ctx, "timeout supervisor stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if err := dispatcher.WaitContext(drainCtx); err != nil {
		logger.Warn(ctx, "in-flight dispatches did not finish before shutdown", zap.Error(err))
	}
	if simulator != nil {
		simulator.Wait()
	}
	return nil
}

func buildHTTPServer(cfg ServerConfig, judgingService *service.JudgingService, simulator *executor.Simulator) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))
	router.Use(commonmw.RequestLogger())

	controller.RegisterRoutes(router, judgingService, simulator)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
