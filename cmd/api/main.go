package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackvoice/provision-ai-platform/cmd/mainconfig"
	"github.com/stackvoice/provision-ai-platform/internal/api/router"
	"github.com/stackvoice/provision-ai-platform/internal/app/bootstrap"
	"github.com/stackvoice/provision-ai-platform/internal/approval"
	"github.com/stackvoice/provision-ai-platform/internal/compliance"
	appconfig "github.com/stackvoice/provision-ai-platform/internal/config"
	"github.com/stackvoice/provision-ai-platform/internal/conversation"
	"github.com/stackvoice/provision-ai-platform/internal/cost"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/internal/observability/metrics"
	"github.com/stackvoice/provision-ai-platform/internal/template"
	executionworker "github.com/stackvoice/provision-ai-platform/internal/worker/execution"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting provision-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	runCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dbPool, sqlDB, err := bootstrap.BuildPostgres(runCtx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if dbPool != nil {
		defer dbPool.Close()
	}
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}
	auditSvc := bootstrap.BuildAuditService(sqlDB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	deployMetrics := metrics.NewDeploymentMetrics(registry)

	// Approval dispatch: queue plus the Postgres outbox for publish failures.
	if !cfg.UseMemoryQueue && cfg.ApprovalQueueURL == "" {
		logger.Error("APPROVAL_QUEUE_URL is required unless USE_MEMORY_QUEUE=true")
		os.Exit(1)
	}
	approvalQueue := bootstrap.BuildQueue(awsCfg, cfg, cfg.ApprovalQueueURL)
	var failures approval.FailureRecorder
	var outboxStore *approval.OutboxStore
	if dbPool != nil {
		outboxStore = approval.NewOutboxStore(dbPool)
		failures = outboxStore
	}
	dispatcher := approval.NewDispatcher(approvalQueue, failures, logger)
	if outboxStore != nil {
		sweeper := approval.NewSweeper(outboxStore, approvalQueue, logger).
			WithInterval(cfg.OutboxSweepInterval)
		go sweeper.Start(runCtx)
	}

	store := bootstrap.BuildDeploymentStore(awsCfg, cfg, logger)
	notifier := bootstrap.BuildNotifier(awsCfg, cfg, logger)
	deploySvc := deployment.NewService(store, dispatcher, auditSvc, deployMetrics, logger)

	reconciler := deployment.NewReconciler(store, auditSvc, notifier, deployMetrics, logger)
	var executionQueue approval.QueueClient
	if cfg.UseMemoryQueue || cfg.ExecutionQueueURL != "" {
		executionQueue = bootstrap.BuildQueue(awsCfg, cfg, cfg.ExecutionQueueURL)
		reconciler = reconciler.WithExecutionEnqueuer(executionworker.NewEnqueuer(executionQueue))
	} else {
		logger.Warn("execution queue not configured; approved requests run only via the execute endpoint")
	}
	executionSvc := deployment.NewExecutionService(store, bootstrap.BuildExecutor(cfg, logger), reconciler, cfg.CloudCLIPath, logger)

	// With the memory queue there is no separate worker process, so consume
	// execution jobs inline.
	if cfg.UseMemoryQueue && executionQueue != nil {
		inlineWorker := executionworker.NewWorker(executionSvc, executionQueue, logger,
			executionworker.WithWorkerCount(cfg.WorkerCount),
		)
		inlineWorker.Start(runCtx)
		logger.Info("inline execution worker started", "workers", cfg.WorkerCount)
	}

	// Conversation layer.
	redisClient := bootstrap.BuildRedisClient(runCtx, cfg, logger, true)
	transcripts := conversation.NewTranscriptStore(redisClient)
	states := conversation.NewStateStore(cfg.ConversationTTL, logger)
	go states.StartSweeper(runCtx)
	convSvc := conversation.NewService(conversation.NewEngine(logger), states, transcripts, deploySvc, logger)

	generator, err := bootstrap.BuildTemplateGenerator(runCtx, awsCfg, cfg, logger)
	if err != nil {
		logger.Error("failed to configure template generation", "error", err)
		os.Exit(1)
	}
	var templateHandler *template.Handler
	if generator != nil {
		templateHandler = template.NewHandler(generator, logger)
	}

	costSvc := cost.NewService(executor.NewShellRunner(), cfg.CloudCLIPath, logger)

	var auditHandler *compliance.Handler
	if auditSvc != nil {
		auditHandler = compliance.NewHandler(auditSvc, logger)
	}

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(convSvc, logger),
		DeploymentHandler:   deployment.NewHandler(deploySvc, reconciler, executionSvc, logger),
		CostHandler:         cost.NewHandler(costSvc, logger),
		TemplateHandler:     templateHandler,
		AuditHandler:        auditHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}

	// The synchronous execute endpoint holds the response open for the
	// whole command run, so the write deadline must outlast the executor's
	// timeout.
	writeTimeout := cfg.ExecutionTimeout + 30*time.Second
	if writeTimeout < 15*time.Second {
		writeTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-runCtx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
