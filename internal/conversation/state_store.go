package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// ErrConversationNotFound indicates the conversation expired or never existed.
var ErrConversationNotFound = errors.New("conversation: not found")

const defaultConversationTTL = time.Hour

// StateStore holds live conversation state in process memory. Concurrent
// turns for the same conversation are serialized on a per-conversation lock;
// distinct conversations never contend. Losing an entry loses only
// in-progress dialogue, never a submitted request.
type StateStore struct {
	mu     sync.Mutex
	items  map[string]*stateEntry
	ttl    time.Duration
	logger *logging.Logger
}

type stateEntry struct {
	mu       sync.Mutex
	state    *State
	lastSeen time.Time
}

// NewStateStore creates a store with the given idle TTL (<= 0 uses 1h).
func NewStateStore(ttl time.Duration, logger *logging.Logger) *StateStore {
	if ttl <= 0 {
		ttl = defaultConversationTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StateStore{
		items:  make(map[string]*stateEntry),
		ttl:    ttl,
		logger: logger,
	}
}

// Put registers a newly started conversation.
func (s *StateStore) Put(state *State) {
	if state == nil || state.ConversationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.ConversationID] = &stateEntry{state: state, lastSeen: time.Now()}
}

// With runs fn with exclusive access to the conversation state. The entry's
// lock is held for the duration, so turns within one conversation apply
// one at a time.
func (s *StateStore) With(conversationID string, fn func(*State) error) error {
	s.mu.Lock()
	entry, ok := s.items[conversationID]
	if ok {
		entry.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.state)
}

// Delete removes a conversation (completion or explicit abandonment).
func (s *StateStore) Delete(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, conversationID)
}

// Len reports the number of live conversations.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartSweeper evicts idle conversations until ctx is canceled.
func (s *StateStore) StartSweeper(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *StateStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.items {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.items, id)
			s.logger.Debug("evicted idle conversation", "conversation_id", id)
		}
	}
}
