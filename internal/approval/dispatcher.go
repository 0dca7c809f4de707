package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Message is the approval prompt published for one deployment request.
// RequestID doubles as the deduplication/correlation token: a transport
// redelivery carries the same id and is safe for consumers to ignore.
type Message struct {
	RequestID      string            `json:"request_id"`
	ResourceType   string            `json:"resource_type"`
	ResourceName   string            `json:"resource_name"`
	Configuration  map[string]string `json:"configuration"`
	RequesterID    string            `json:"requester_id"`
	RequesterEmail string            `json:"requester_email"`
	RequesterName  string            `json:"requester_name"`
	EstimatedCost  float64           `json:"estimated_cost"`
	CreatedAt      time.Time         `json:"created_at"`
}

// FailureRecorder captures a publish failure for later re-dispatch. The
// dispatcher itself never retries: a blind retry risks duplicate approval
// prompts, so failures are recorded and swept out of band.
type FailureRecorder interface {
	Record(ctx context.Context, msg Message) error
}

// Dispatcher publishes approval prompts, exactly once per requestId.
type Dispatcher struct {
	queue    QueueClient
	failures FailureRecorder
	logger   *logging.Logger
}

// NewDispatcher creates a queue-backed dispatcher. failures may be nil.
func NewDispatcher(queue QueueClient, failures FailureRecorder, logger *logging.Logger) *Dispatcher {
	if queue == nil {
		panic("approval: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		queue:    queue,
		failures: failures,
		logger:   logger,
	}
}

// Publish sends the approval prompt. On failure the message is recorded for
// the re-dispatch sweep and the error is returned so the caller knows no
// dispatch is in flight; the stored request remains pending_approval.
func (d *Dispatcher) Publish(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if msg.RequestID == "" {
		return fmt.Errorf("approval: requestId required")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("approval: encode message: %w", err)
	}

	if err := d.queue.Send(ctx, string(body)); err != nil {
		d.logger.Error("approval publish failed; recording for re-dispatch",
			"request_id", msg.RequestID,
			"error", err,
		)
		if d.failures != nil {
			if recErr := d.failures.Record(ctx, msg); recErr != nil {
				d.logger.Error("failed to record publish failure",
					"request_id", msg.RequestID,
					"error", recErr,
				)
			}
		}
		return fmt.Errorf("approval: publish request %s: %w", msg.RequestID, err)
	}

	d.logger.Debug("approval prompt published", "request_id", msg.RequestID)
	return nil
}
