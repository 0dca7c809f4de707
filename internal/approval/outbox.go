package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxEntry is one approval prompt whose publish failed and is awaiting
// re-dispatch.
type OutboxEntry struct {
	ID        uuid.UUID
	RequestID string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// OutboxStore persists failed approval publishes for the re-dispatch sweep.
// At most one pending row exists per requestId so a sweep never produces
// duplicate prompts for the same request.
type OutboxStore struct {
	pool pgxQuerier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("approval: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec pgxQuerier) *OutboxStore {
	if exec == nil {
		panic("approval: exec required")
	}
	return &OutboxStore{pool: exec}
}

// Record stores the failed message. Recording the same requestId again while
// a pending row exists is a no-op.
func (s *OutboxStore) Record(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("approval: marshal outbox payload: %w", err)
	}
	query := `
		INSERT INTO dispatch_outbox (id, request_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) WHERE delivered_at IS NULL DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), msg.RequestID, data); err != nil {
		return fmt.Errorf("approval: insert outbox: %w", err)
	}
	return nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, request_id, payload, created_at
		FROM dispatch_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("approval: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.RequestID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("approval: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE dispatch_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("approval: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Sweeper periodically re-publishes recorded failures through the queue.
type Sweeper struct {
	store     *OutboxStore
	queue     QueueClient
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewSweeper(store *OutboxStore, queue QueueClient, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:     store,
		queue:     queue,
		logger:    logger,
		batchSize: 25,
		interval:  30 * time.Second,
	}
}

func (s *Sweeper) WithBatchSize(size int32) *Sweeper {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

func (s *Sweeper) Start(ctx context.Context) {
	if s.store == nil || s.queue == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	entries, err := s.store.FetchPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := s.queue.Send(ctx, string(entry.Payload)); err != nil {
			s.logger.Error("re-dispatch failed", "error", err, "request_id", entry.RequestID)
			continue
		}
		if ok, err := s.store.MarkDelivered(ctx, entry.ID); err != nil {
			s.logger.Error("failed to mark outbox delivered", "error", err, "request_id", entry.RequestID)
		} else if ok {
			s.logger.Info("approval prompt re-dispatched", "request_id", entry.RequestID)
		}
	}
}
