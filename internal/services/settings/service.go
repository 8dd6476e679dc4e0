package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

var ErrInvalidPatch = errors.New("invalid settings update")

// Service owns the single settings record. Readers get copies and
// Update swaps the whole record, so no caller ever sees a half-applied patch.
type Service struct {
	mu      sync.RWMutex
	current *entities.UserSettings
	store   Store
	logger  *zap.Logger
}

// NewService loads the persisted record, falling back to defaults when it is missing or unreadable.
func NewService(ctx context.Context, store Store, logger *zap.Logger) *Service {
	s := &Service{store: store, logger: logger}
	loaded, err := store.Load(ctx)
	switch {
	case err == nil:
		s.current = loaded
	case errors.Is(err, ErrNotFound):
		s.current = entities.DefaultSettings()
	default:
		logger.Warn("settings: failed to load, using defaults", zap.Error(err))
		s.current = entities.DefaultSettings()
	}
	return s
}

func (s *Service) Get() *entities.UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Service) Preferences() entities.UserPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Notifications.UserPreferences
}

func (s *Service) Thresholds() map[entities.SensorKind]entities.SafeRange {
	return s.Get().Notifications.Thresholds
}

// Update validates and applies p atomically, then persists the new record.
// A persistence failure is returned but the in-memory record stays updated.
func (s *Service) Update(ctx context.Context, p entities.SettingsPatch) (*entities.UserSettings, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	s.mu.Lock()
	next := s.current.Clone()
	p.Apply(next)
	s.current = next
	s.mu.Unlock()

	out := next.Clone()
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("settings: failed to persist", zap.Error(err))
		return out, fmt.Errorf("persist settings: %w", err)
	}
	s.logger.Info("settings: updated")
	return out, nil
}
