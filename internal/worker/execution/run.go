package executionworker

import (
	"context"
	"fmt"
	"time"

	"github.com/stackvoice/provision-ai-platform/cmd/mainconfig"
	"github.com/stackvoice/provision-ai-platform/internal/app/bootstrap"
	appconfig "github.com/stackvoice/provision-ai-platform/internal/config"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Run starts the execution worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("execution worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("execution worker cannot run when USE_MEMORY_QUEUE=true; run the inline worker in the API process instead")
	}
	if cfg.ExecutionQueueURL == "" {
		return fmt.Errorf("execution worker requires EXECUTION_QUEUE_URL")
	}

	dbPool, sqlDB, err := bootstrap.BuildPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	if dbPool != nil {
		defer dbPool.Close()
	}
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}
	auditSvc := bootstrap.BuildAuditService(sqlDB)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := bootstrap.BuildDeploymentStore(awsCfg, cfg, logger)
	queue := bootstrap.BuildQueue(awsCfg, cfg, cfg.ExecutionQueueURL)
	notifier := bootstrap.BuildNotifier(awsCfg, cfg, logger)

	reconciler := deployment.NewReconciler(store, auditSvc, notifier, nil, logger)
	execution := deployment.NewExecutionService(store, bootstrap.BuildExecutor(cfg, logger), reconciler, cfg.CloudCLIPath, logger)

	worker := NewWorker(execution, queue, logger, WithWorkerCount(cfg.WorkerCount))
	worker.Start(ctx)

	<-ctx.Done()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("execution worker stopped")
	case <-doneCtx.Done():
		logger.Error("execution worker shutdown timed out", "error", doneCtx.Err())
	}

	return nil
}
