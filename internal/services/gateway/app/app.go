package app

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	sensorSimulator "github.com/LeonardoBeccarini/aquamonitor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
)

// Telemetry is the live loop as the gateway drives it.
type Telemetry interface {
	Snapshot() []entities.SensorState
	Connected() bool
	Connect(ctx context.Context) bool
	Disconnect() bool
	Reset()
}

type Settings interface {
	Get() *entities.UserSettings
	Update(ctx context.Context, p entities.SettingsPatch) (*entities.UserSettings, error)
}

type Alerts interface {
	Recent() []messages.AlertRecord
	Notified() []entities.AlertKey
}

type HistoryGenerator interface {
	History(kind entities.SensorKind, t sensorSimulator.TimeRange) []entities.Reading
}

// StoredHistory reads persisted readings; nil when InfluxDB is disabled.
type StoredHistory interface {
	Query(ctx context.Context, kind entities.SensorKind, span, every time.Duration) ([]entities.Reading, error)
}

// Probe reports one dependency's readiness.
type Probe func() bool

type Config struct {
	HTTPTimeout time.Duration
	Breaker     selector.BreakerSettings
	// LoopContext outlives requests; the loop started by /api/device/connect runs under it.
	LoopContext context.Context
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

type Deps struct {
	Telemetry Telemetry
	Settings  Settings
	Alerts    Alerts
	Generator HistoryGenerator
	Stored    StoredHistory
	Hub       *Hub
	Probes    map[string]Probe
}

type Gateway struct {
	cfg      Config
	deps     Deps
	logger   *zap.Logger
	historyB *gobreaker.CircuitBreaker
}

func NewGateway(cfg Config, deps Deps) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}
	if cfg.LoopContext == nil {
		cfg.LoopContext = context.Background()
	}
	return &Gateway{
		cfg:      cfg,
		deps:     deps,
		logger:   cfg.Logger,
		historyB: selector.NewBreaker("influx-history", cfg.Breaker),
	}
}

// HandleReadings pushes a fresh snapshot to every dashboard after each tick.
func (g *Gateway) HandleReadings(_ context.Context, _ []messages.SensorData) error {
	if g.deps.Hub != nil {
		g.deps.Hub.Broadcast(MessageSnapshot, g.sensors())
	}
	return nil
}

func (g *Gateway) HandleAlert(_ context.Context, rec messages.AlertRecord) error {
	if g.deps.Hub != nil {
		g.deps.Hub.Broadcast(MessageAlert, rec)
	}
	return nil
}

func (g *Gateway) sensors() SensorsResponse {
	return SensorsResponse{
		Connected: g.deps.Telemetry.Connected(),
		Sensors:   g.deps.Telemetry.Snapshot(),
	}
}
