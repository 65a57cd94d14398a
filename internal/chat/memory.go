package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Turn is one remembered exchange unit, either side.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Cache is the key-value store session memory lives in.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// MemoryStore keeps a bounded rolling window of recent turns per
// (companion, user) pair. It is a convenience layer over the authoritative
// message log: loads fail open to an empty window and saves are
// best-effort, so a cache outage degrades the conversation to memory-less
// rather than breaking it.
type MemoryStore struct {
	cache  Cache
	window int
	ttl    time.Duration
}

func NewMemoryStore(cache Cache, window int, ttl time.Duration) *MemoryStore {
	if window <= 0 {
		window = 30
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MemoryStore{cache: cache, window: window, ttl: ttl}
}

func memoryKey(companionID string, userID uint64) string {
	return fmt.Sprintf("chat_history:%s:%d", companionID, userID)
}

// Load returns the remembered window, oldest first. Unreachable cache or a
// corrupt blob yields an empty window.
func (m *MemoryStore) Load(ctx context.Context, companionID string, userID uint64) []Turn {
	key := memoryKey(companionID, userID)
	b, err := m.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var turns []Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		slog.Warn("session memory blob unreadable, starting fresh", "key", key, "error", err)
		return nil
	}
	return m.trim(turns)
}

// Save overwrites the window, evicting the oldest turns beyond the window
// size. Failures are logged and swallowed.
func (m *MemoryStore) Save(ctx context.Context, companionID string, userID uint64, turns []Turn) {
	key := memoryKey(companionID, userID)
	b, err := json.Marshal(m.trim(turns))
	if err != nil {
		slog.Warn("session memory marshal failed", "key", key, "error", err)
		return
	}
	if err := m.cache.Set(ctx, key, b, m.ttl); err != nil {
		slog.Warn("session memory save failed", "key", key, "error", err)
	}
}

func (m *MemoryStore) Delete(ctx context.Context, companionID string, userID uint64) error {
	return m.cache.Del(ctx, memoryKey(companionID, userID))
}

func (m *MemoryStore) trim(turns []Turn) []Turn {
	if len(turns) > m.window {
		return turns[len(turns)-m.window:]
	}
	return turns
}
