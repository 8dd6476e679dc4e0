package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// StorageKey is where the settings record lives.
const StorageKey = "waterQualityMonitorSettings"

// ErrNotFound means nothing has been saved yet.
var ErrNotFound = errors.New("settings not found")

type Store interface {
	Load(ctx context.Context) (*entities.UserSettings, error)
	Save(ctx context.Context, s *entities.UserSettings) error
}

type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(_ context.Context) (*entities.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return nil, ErrNotFound
	}
	return decode(m.raw)
}

func (m *MemoryStore) Save(_ context.Context, s *entities.UserSettings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	m.mu.Lock()
	m.raw = b
	m.mu.Unlock()
	return nil
}

// RedisStore keeps the record as one JSON document.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, key: StorageKey, logger: logger}
}

func (r *RedisStore) Load(ctx context.Context) (*entities.UserSettings, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decode(raw)
}

func (r *RedisStore) Save(ctx context.Context, s *entities.UserSettings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	r.logger.Debug("settings: saved to redis", zap.String("key", r.key))
	return nil
}

func decode(raw []byte) (*entities.UserSettings, error) {
	var s entities.UserSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Normalize()
	return &s, nil
}
