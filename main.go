// File: visaflow/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visaflow/config"
	"visaflow/cron"
	"visaflow/database"
	"visaflow/database/repository"
	"visaflow/handlers"
	"visaflow/models"
	"visaflow/routes"
	"visaflow/services/adapters"
	"visaflow/services/availability"
	"visaflow/services/booking"
	"visaflow/services/monitoring"
	"visaflow/services/notification"
	"visaflow/services/registry"
	"visaflow/services/tasks"
	"visaflow/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	if err := database.InitDB(); err != nil {
		logger.Warn("MongoDB unavailable, booking results and alerts will not be persisted", zap.Error(err))
	}
	utils.InitRedis()

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	utils.StartHealthMonitor(healthCtx, time.Minute, database.MongoClient, utils.CacheClient, utils.AlertClient)

	// registry and adapters.
	descs := make([]models.AdapterDescriptor, 0, len(config.AppConfig.Adapters))
	raw := make(map[string]adapters.Adapter, len(config.AppConfig.Adapters))
	for _, def := range config.AppConfig.Adapters {
		desc, a, err := adapters.Build(def)
		if err != nil {
			logger.Error("skipping adapter definition", zap.String("adapterID", def.ID), zap.Error(err))
			continue
		}
		descs = append(descs, desc)
		raw[desc.ID] = a
	}
	reg, err := registry.New(descs...)
	if err != nil {
		logger.Fatal("main: invalid adapter registry", zap.Error(err))
	}
	byID := make(map[string]adapters.Adapter, len(raw))
	for id, a := range raw {
		byID[id] = adapters.NewGuard(a, config.AppConfig.AdapterTimeout, reg, logger)
	}
	logger.Info("adapter registry loaded", zap.Int("adapters", len(byID)))

	// persistence.
	var results repository.ResultsRepository
	var recorder booking.Recorder
	var alertRecorder monitoring.AlertRecorder
	if db := database.Database(); db != nil {
		repo := repository.NewMongoResultsRepo(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to ensure result indexes", zap.Error(err))
		}
		cancel()
		results, recorder, alertRecorder = repo, repo, repo
	}

	consolidator := availability.NewConsolidator(reg, byID, config.AppConfig.AdapterTimeout, logger)
	if utils.CacheClient != nil {
		consolidator.WithCache(availability.NewRedisSlotCache(utils.CacheClient, config.AppConfig.SlotCacheTTL, logger))
	}

	orchestratorOpts := []booking.OrchestratorOption{
		booking.WithRetryBaseDelay(config.AppConfig.RetryBaseDelay),
		booking.WithPersistTimeout(config.AppConfig.PersistTimeout),
	}
	if recorder != nil {
		orchestratorOpts = append(orchestratorOpts, booking.WithRecorder(recorder))
	}
	orchestrator := booking.NewOrchestrator(reg, byID, logger, orchestratorOpts...)

	// notification.
	router := notification.NewRouter(notification.NewLogNotifier(logger))
	if fcm, err := utils.FirebaseInit(); err != nil {
		logger.Warn("push notifications disabled", zap.Error(err))
	} else {
		router.Handle(notification.ChannelPush, notification.NewFCMNotifier(fcm))
	}

	queue := asynq.NewClient(cron.RedisOpt())
	defer queue.Close()
	worker := cron.InitAlertWorker(router)
	dispatcher := notification.NewAlertDispatcher(router, tasks.NewEnqueuer(queue), logger)

	var deduper monitoring.Deduper
	if utils.AlertClient != nil {
		deduper = monitoring.NewRedisDeduper(utils.AlertClient)
	}
	supervisor := monitoring.NewSupervisor(monitoring.Config{
		DefaultInterval: config.AppConfig.MonitorDefaultInterval,
		MaxBackoff:      config.AppConfig.MonitorMaxBackoff,
		DedupeTTL:       config.AppConfig.AlertDedupeTTL,
		WindowDays:      config.AppConfig.DiscoveryWindowDays,
		PersistTimeout:  config.AppConfig.PersistTimeout,
	}, consolidator, deduper, dispatcher, alertRecorder, logger)

	hybrid, err := booking.NewHybridService(booking.HybridDeps{
		Registry:     reg,
		Consolidator: consolidator,
		Orchestrator: orchestrator,
		Monitor:      supervisor,
		WindowDays:   config.AppConfig.DiscoveryWindowDays,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("main: failed to build hybrid service", zap.Error(err))
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.AppConfig.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, operator endpoints will refuse every request")
	}

	// Create the Gin router.
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.ErrorHandler())
	r.Use(gin.Logger())

	handlerBundle := handlers.NewHandlerBundle(hybrid, results, config.AppConfig.JWTSecret)
	routes.RegisterRoutes(r, handlerBundle)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", config.AppConfig.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := supervisor.Shutdown(ctx); err != nil {
		logger.Error("Monitoring shutdown incomplete", zap.Error(err))
	}
	worker.Shutdown()
	stopHealth()
	utils.CloseRedis()
	database.CloseDB(ctx)
	logger.Info("Server exiting")
}
