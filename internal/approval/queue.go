// Package approval publishes fully-specified deployment requests for
// external human approval, exactly once per request.
package approval

import "context"

// QueueClient is the minimal message-queue contract: enqueue here, consume
// elsewhere, delete once handled.
type QueueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one delivered queue message.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}
