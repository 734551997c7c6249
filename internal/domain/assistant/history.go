package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/careline/careline/internal/platform/llm"
)

const (
	conversationTTL = 24 * time.Hour
	// maxHistory is the number of stored turns replayed to the model.
	maxHistory = 20
)

// HistoryStore keeps conversation turns. Load returns an empty history for
// an unknown or expired conversation.
type HistoryStore interface {
	Load(ctx context.Context, key string) ([]llm.Message, error)
	Save(ctx context.Context, key string, history []llm.Message) error
}

func conversationKey(owner, conversationID string) string {
	return fmt.Sprintf("assistant:conversation:%s:%s", owner, conversationID)
}

// RedisHistory stores each conversation as one JSON value with a sliding
// 24 hour expiry.
type RedisHistory struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisHistory(client *redis.Client, tracer trace.Tracer) *RedisHistory {
	if tracer == nil {
		tracer = otel.Tracer("careline.internal.domain.assistant.history")
	}
	return &RedisHistory{redis: client, tracer: tracer}
}

func (s *RedisHistory) Save(ctx context.Context, key string, history []llm.Message) error {
	ctx, span := s.tracer.Start(ctx, "assistant.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, key, data, conversationTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func (s *RedisHistory) Load(ctx context.Context, key string) ([]llm.Message, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []llm.Message{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load history: %w", err)
	}

	var history []llm.Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

type memoryEntry struct {
	history []llm.Message
	expires time.Time
}

// MemoryHistory is the HistoryStore used when no redis URL is configured.
type MemoryHistory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryHistory) Save(_ context.Context, key string, history []llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		history: append([]llm.Message(nil), history...),
		expires: m.now().Add(conversationTTL),
	}
	return nil
}

func (m *MemoryHistory) Load(_ context.Context, key string) ([]llm.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return []llm.Message{}, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return []llm.Message{}, nil
	}
	return append([]llm.Message{}, e.history...), nil
}
