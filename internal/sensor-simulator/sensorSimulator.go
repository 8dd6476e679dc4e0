package sensor_simulator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/alerting"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/dedup"
)

// TopicDeviceConnection carries DeviceConnectionEvent commands.
const TopicDeviceConnection = "device/connection"

const (
	driftRatio     = 0.1
	spikeRatio     = 0.3
	spikeThreshold = 0.98
)

// seed holds the starting value and the narrow range its history is generated from.
type seed struct {
	value float64
	band  entities.SafeRange
}

var seeds = map[entities.SensorKind]seed{
	entities.KindPH:          {value: 7.5, band: entities.SafeRange{Low: 7.2, High: 7.8}},
	entities.KindTemperature: {value: 22.1, band: entities.SafeRange{Low: 21, High: 23}},
	entities.KindTDS:         {value: 350, band: entities.SafeRange{Low: 300, High: 400}},
	entities.KindTurbidity:   {value: 1.2, band: entities.SafeRange{Low: 0.5, High: 1.5}},
}

type SettingsSource interface {
	Get() *entities.UserSettings
}

type Dispatcher interface {
	Dispatch(state entities.SensorState, prefs entities.UserPreferences, appOpen bool) alerting.Outcome
	Rearm(kind entities.SensorKind)
	Reset()
}

// ReadingSink receives the committed readings of every tick.
type ReadingSink interface {
	HandleReadings(ctx context.Context, readings []messages.SensorData) error
}

type ReadingSinkFunc func(ctx context.Context, readings []messages.SensorData) error

func (f ReadingSinkFunc) HandleReadings(ctx context.Context, readings []messages.SensorData) error {
	return f(ctx, readings)
}

type Config struct {
	Interval        time.Duration
	HistoryCapacity int
	// RearmOnRecovery clears a kind's notified alerts when it returns to Safe.
	RearmOnRecovery bool
	// AppOpen reports whether a dashboard is watching; nil means never.
	AppOpen func() bool
	Metrics *metrics.Metrics
}

type sensor struct {
	current  float64
	severity entities.Severity
	history  *History
}

type namedSink struct {
	name string
	sink ReadingSink
}

// SensorSimulator is the live telemetry loop. It owns the sensor states and mutates
// them only inside Tick, which runs while connected and is serialized by mu.
type SensorSimulator struct {
	mu        sync.Mutex
	states    map[entities.SensorKind]*sensor
	connected bool
	stop      chan struct{}
	done      chan struct{}

	runMu sync.Mutex // serializes Connect and Disconnect

	cfg        Config
	settings   SettingsSource
	dispatcher Dispatcher
	generator  *DataGenerator
	rng        Rand
	now        func() time.Time
	sinks      []namedSink
	deduper    *dedup.Deduper
	logger     *zap.Logger
}

func NewSensorSimulator(cfg Config, settings SettingsSource, dispatcher Dispatcher, gen *DataGenerator, logger *zap.Logger) *SensorSimulator {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 60
	}
	s := &SensorSimulator{
		cfg:        cfg,
		settings:   settings,
		dispatcher: dispatcher,
		generator:  gen,
		rng:        gen,
		now:        time.Now,
		deduper:    dedup.New(2*time.Minute, 1000),
		logger:     logger,
	}
	s.states = s.seedStates()
	return s
}

func (s *SensorSimulator) AddSink(name string, sink ReadingSink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
	s.mu.Unlock()
}

func (s *SensorSimulator) seedStates() map[entities.SensorKind]*sensor {
	thresholds := s.settings.Get()
	out := make(map[entities.SensorKind]*sensor, len(entities.AllKinds))
	for _, k := range entities.AllKinds {
		sd := seeds[k]
		h := NewHistory(s.cfg.HistoryCapacity)
		for _, r := range s.generator.Generate(1, s.cfg.HistoryCapacity, sd.band) {
			h.Push(r)
		}
		out[k] = &sensor{
			current:  sd.value,
			severity: entities.Classify(sd.value, thresholds.Threshold(k)),
			history:  h,
		}
	}
	return out
}

// Connect starts the ticker. It returns false if the loop was already running.
func (s *SensorSimulator) Connect(ctx context.Context) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return false
	}
	s.connected = true
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go s.run(ctx, stop, done)
	s.setConnectedGauge(1)
	s.logger.Info("telemetry: device connected", zap.Duration("interval", s.cfg.Interval))
	return true
}

// Disconnect stops the ticker and waits for an in-flight tick, so no tick runs after it returns.
func (s *SensorSimulator) Disconnect() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return false
	}
	s.connected = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.setConnectedGauge(0)
	s.logger.Info("telemetry: device disconnected")
	return true
}

func (s *SensorSimulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SensorSimulator) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances every sensor once, in AllKinds order. It is a no-op while disconnected.
func (s *SensorSimulator) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return false
	}

	cfg := s.settings.Get()
	prefs := cfg.Notifications.UserPreferences
	appOpen := s.cfg.AppOpen != nil && s.cfg.AppOpen()
	now := s.now()

	batch := make([]messages.SensorData, 0, len(entities.AllKinds))
	for _, k := range entities.AllKinds {
		st := s.states[k]
		r := cfg.Threshold(k)

		newValue := st.current + s.nextChange(r.Span())
		newSeverity := entities.Classify(newValue, r)

		if st.severity == entities.Safe && newSeverity != entities.Safe {
			out := s.dispatcher.Dispatch(entities.SensorState{
				Kind:     k,
				Unit:     k.Unit(),
				Current:  newValue,
				Severity: newSeverity,
			}, prefs, appOpen)
			s.logger.Info("telemetry: threshold crossed",
				zap.String("kind", string(k)),
				zap.Float64("value", newValue),
				zap.String("severity", newSeverity.String()),
				zap.String("outcome", out.String()))
		} else if s.cfg.RearmOnRecovery && st.severity != entities.Safe && newSeverity == entities.Safe {
			s.dispatcher.Rearm(k)
		}

		st.history.Push(entities.Reading{Timestamp: now, Value: newValue})
		st.current = newValue
		st.severity = newSeverity

		batch = append(batch, messages.SensorData{
			Kind:      k,
			Unit:      k.Unit(),
			Value:     newValue,
			Severity:  newSeverity,
			Timestamp: now,
		})
	}
	sinks := append([]namedSink(nil), s.sinks...)
	s.mu.Unlock()

	s.observe(batch)
	for _, ns := range sinks {
		if err := ns.sink.HandleReadings(ctx, batch); err != nil {
			s.logger.Warn("telemetry: sink failed", zap.String("sink", ns.name), zap.Error(err))
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.SinkFailures.WithLabelValues(ns.name).Inc()
			}
		}
	}
	return true
}

// nextChange draws a small drift; about one tick in fifty it is replaced by a spike.
func (s *SensorSimulator) nextChange(span float64) float64 {
	change := (s.rng.Float64() - 0.5) * span * driftRatio
	if s.rng.Float64() > spikeThreshold {
		if s.rng.Float64() > 0.5 {
			return span * spikeRatio
		}
		return -span * spikeRatio
	}
	return change
}

func (s *SensorSimulator) observe(batch []messages.SensorData) {
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	m.Ticks.Inc()
	for _, d := range batch {
		m.SensorValue.WithLabelValues(string(d.Kind)).Set(d.Value)
		m.SensorSeverity.WithLabelValues(string(d.Kind)).Set(float64(d.Severity))
	}
}

func (s *SensorSimulator) setConnectedGauge(v float64) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.DeviceConnected.Set(v)
	}
}

// Snapshot returns deep copies of all sensor states in AllKinds order.
func (s *SensorSimulator) Snapshot() []entities.SensorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.SensorState, 0, len(entities.AllKinds))
	for _, k := range entities.AllKinds {
		st := s.states[k]
		out = append(out, entities.SensorState{
			Kind:     k,
			Unit:     k.Unit(),
			Current:  st.current,
			Severity: st.severity,
			History:  st.history.Slice(),
		})
	}
	return out
}

// Reset disconnects, reseeds every sensor and starts a new alert session.
func (s *SensorSimulator) Reset() {
	s.Disconnect()
	s.mu.Lock()
	s.states = s.seedStates()
	s.mu.Unlock()
	s.dispatcher.Reset()
	s.logger.Info("telemetry: session reset")
}

// HandleConnectionMessage applies a DeviceConnectionEvent received over MQTT.
func (s *SensorSimulator) HandleConnectionMessage(ctx context.Context) func(string, mqtt.Message) error {
	return func(_ string, msg mqtt.Message) error {
		// a QoS1 redelivery carries the DUP flag and the same payload as the original
		h := sha256.Sum256(msg.Payload())
		if fresh := s.deduper.ShouldProcess(hex.EncodeToString(h[:])); !fresh && msg.Duplicate() {
			return nil
		}
		var evt messages.DeviceConnectionEvent
		if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
			return fmt.Errorf("invalid DeviceConnectionEvent: %w", err)
		}
		if evt.Connected {
			s.Connect(ctx)
		} else {
			s.Disconnect()
		}
		s.logger.Info("telemetry: connection command",
			zap.Bool("connected", evt.Connected),
			zap.String("device", evt.Name),
			zap.String("address", evt.Address))
		return nil
	}
}
