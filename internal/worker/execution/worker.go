package executionworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stackvoice/provision-ai-platform/internal/approval"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Job is the execution queue payload. The request itself stays in the
// store; the queue only carries the reference.
type Job struct {
	RequestID string `json:"request_id"`
}

// Enqueuer publishes execution jobs onto the queue. It satisfies
// deployment.ExecutionEnqueuer.
type Enqueuer struct {
	queue approval.QueueClient
}

// NewEnqueuer creates a queue-backed execution enqueuer.
func NewEnqueuer(queue approval.QueueClient) *Enqueuer {
	if queue == nil {
		panic("executionworker: queue cannot be nil")
	}
	return &Enqueuer{queue: queue}
}

// Enqueue publishes a job for the given request.
func (e *Enqueuer) Enqueue(ctx context.Context, requestID string) error {
	if requestID == "" {
		return errors.New("executionworker: requestID required")
	}
	body, err := json.Marshal(Job{RequestID: requestID})
	if err != nil {
		return fmt.Errorf("executionworker: marshal job: %w", err)
	}
	if err := e.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("executionworker: enqueue job: %w", err)
	}
	return nil
}

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many jobs to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker consumes execution jobs from the queue and runs them through the
// execution service. The service is idempotent for terminal requests, so
// queue redeliveries are harmless.
type Worker struct {
	execution *deployment.ExecutionService
	queue     approval.QueueClient
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker creates an execution queue consumer.
func NewWorker(execution *deployment.ExecutionService, queue approval.QueueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if execution == nil {
		panic("executionworker: execution service cannot be nil")
	}
	if queue == nil {
		panic("executionworker: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &Worker{
		execution: execution,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines. They stop when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("execution worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("execution worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive execution jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg approval.QueueMessage) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil || job.RequestID == "" {
		w.logger.Error("failed to decode execution job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	req, err := w.execution.Run(ctx, job.RequestID)
	switch {
	case err == nil:
		w.logger.Info("execution job finished",
			"request_id", job.RequestID,
			"status", req.Status,
		)
		w.deleteMessage(msg.ReceiptHandle)
	case errors.Is(err, deployment.ErrNotFound):
		// Nothing to execute; redelivering cannot help.
		w.logger.Warn("execution job references unknown request", "request_id", job.RequestID)
		w.deleteMessage(msg.ReceiptHandle)
	case errors.Is(err, deployment.ErrNotApproved):
		// A stale or out-of-order job. The request was never approved, or
		// was rejected after the job was enqueued.
		w.logger.Warn("execution job for unapproved request dropped", "request_id", job.RequestID)
		w.deleteMessage(msg.ReceiptHandle)
	default:
		// Transient failure (storage and the like). Leave the message for
		// redelivery.
		w.logger.Error("execution job failed, leaving for redelivery",
			"request_id", job.RequestID,
			"error", err,
		)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete execution job", "error", err)
	}
}
