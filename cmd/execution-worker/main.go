package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/stackvoice/provision-ai-platform/internal/config"
	executionworker "github.com/stackvoice/provision-ai-platform/internal/worker/execution"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting execution worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := executionworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("execution worker failed", "error", err)
		os.Exit(1)
	}
}
