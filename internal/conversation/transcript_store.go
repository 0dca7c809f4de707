package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const transcriptKeyPrefix = "conversation_transcript:"

// TranscriptEntry is one line of the dialogue audit log: user turns, engine
// questions, recommendations, and advisory notes, in order.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user", "assistant" or "advisory"
	Body      string    `json:"body"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps an append-only per-conversation transcript in Redis
// for audit and explainability. All methods tolerate a nil receiver so the
// store stays optional.
type TranscriptStore struct {
	redis      *redis.Client
	maxEntries int64
	ttl        time.Duration
}

// NewTranscriptStore creates a transcript store, or nil when Redis is absent.
func NewTranscriptStore(redisClient *redis.Client) *TranscriptStore {
	if redisClient == nil {
		return nil
	}
	return &TranscriptStore{
		redis:      redisClient,
		maxEntries: 500,
		ttl:        7 * 24 * time.Hour,
	}
}

// Append pushes an entry onto the conversation transcript.
func (s *TranscriptStore) Append(ctx context.Context, conversationID string, entry TranscriptEntry) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if conversationID == "" {
		return errors.New("conversation: transcript conversationID required")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript entry: %w", err)
	}

	key := transcriptKey(conversationID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxEntries > 0 {
		pipe.LTrim(ctx, key, -s.maxEntries, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conversation: append transcript entry: %w", err)
	}
	return nil
}

// List returns up to limit most recent transcript entries in order.
func (s *TranscriptStore) List(ctx context.Context, conversationID string, limit int64) ([]TranscriptEntry, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if conversationID == "" {
		return nil, errors.New("conversation: transcript conversationID required")
	}

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(conversationID), start, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}

	out := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func transcriptKey(conversationID string) string {
	return transcriptKeyPrefix + conversationID
}
