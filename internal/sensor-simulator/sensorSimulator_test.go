package sensor_simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/alerting"
)

type staticSettings struct{ s *entities.UserSettings }

func (f staticSettings) Get() *entities.UserSettings { return f.s.Clone() }

type fakeDispatcher struct {
	mu      sync.Mutex
	states  []entities.SensorState
	appOpen []bool
	rearmed []entities.SensorKind
	resets  int
}

func (f *fakeDispatcher) Dispatch(st entities.SensorState, _ entities.UserPreferences, appOpen bool) alerting.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, st)
	f.appOpen = append(f.appOpen, appOpen)
	return alerting.Forwarded
}

func (f *fakeDispatcher) Rearm(k entities.SensorKind) {
	f.mu.Lock()
	f.rearmed = append(f.rearmed, k)
	f.mu.Unlock()
}

func (f *fakeDispatcher) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeDispatcher) dispatched() []entities.SensorState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.SensorState(nil), f.states...)
}

// scriptedRand replays values, then returns neutral draws (no drift, no spike).
type scriptedRand struct {
	vals []float64
}

func (r *scriptedRand) Float64() float64 {
	if len(r.vals) == 0 {
		return 0.5
	}
	v := r.vals[0]
	r.vals = r.vals[1:]
	return v
}

// phStep scripts one tick where only pH moves; the other three kinds draw (0.5, 0.0).
func phStep(draws ...float64) []float64 {
	out := append([]float64(nil), draws...)
	for i := 0; i < 3; i++ {
		out = append(out, 0.5, 0.0)
	}
	return out
}

func setupSimulator(t *testing.T, s *entities.UserSettings, cfg Config) (*SensorSimulator, *fakeDispatcher) {
	t.Helper()
	if s == nil {
		s = entities.DefaultSettings()
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	d := &fakeDispatcher{}
	sim := NewSensorSimulator(cfg, staticSettings{s}, d, NewDataGenerator(1), zap.NewNop())
	t.Cleanup(func() { sim.Disconnect() })
	return sim, d
}

func TestSeedStates(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{})
	snap := sim.Snapshot()
	require.Len(t, snap, 4)

	assert.Equal(t, entities.KindPH, snap[0].Kind)
	assert.Equal(t, 7.5, snap[0].Current)
	assert.Equal(t, entities.Safe, snap[0].Severity)
	assert.Len(t, snap[0].History, 60)
	assert.Equal(t, "°C", snap[1].Unit)
	assert.Equal(t, 22.1, snap[1].Current)
	assert.Equal(t, 350.0, snap[2].Current)
	assert.Equal(t, 1.2, snap[3].Current)
}

func TestTick_NoopWhileDisconnected(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{})
	before := sim.Snapshot()
	assert.False(t, sim.Tick(context.Background()))
	assert.Equal(t, before, sim.Snapshot())
}

func TestTick_RisingEdgeOnly(t *testing.T) {
	s := entities.DefaultSettings()
	// span 0.5: drift at most ±0.025, spike ±0.15, danger beyond 0.1
	s.Notifications.Thresholds[entities.KindPH] = entities.SafeRange{Low: 7.0, High: 7.5}
	sim, d := setupSimulator(t, s, Config{})

	var script []float64
	script = append(script, phStep(0.99, 0.0)...)      // +0.0245 -> warning (dispatch)
	script = append(script, phStep(0.5, 0.0)...)       // unchanged -> warning
	script = append(script, phStep(0.5, 0.99, 0.9)...) // +0.15 spike -> danger
	script = append(script, phStep(0.5, 0.99, 0.1)...) // -0.15 spike -> warning
	script = append(script, phStep(0.0, 0.0)...)       // -0.025 -> safe
	script = append(script, phStep(0.5, 0.99, 0.9)...) // +0.15 spike -> danger (dispatch)
	sim.rng = &scriptedRand{vals: script}

	require.True(t, sim.Connect(context.Background()))
	var severities []entities.Severity
	for i := 0; i < 6; i++ {
		require.True(t, sim.Tick(context.Background()))
		severities = append(severities, sim.Snapshot()[0].Severity)
	}

	assert.Equal(t, []entities.Severity{
		entities.Warning, entities.Warning, entities.Danger,
		entities.Warning, entities.Safe, entities.Danger,
	}, severities)

	got := d.dispatched()
	require.Len(t, got, 2)
	assert.Equal(t, entities.Warning, got[0].Severity)
	assert.InDelta(t, 7.5245, got[0].Current, 1e-9)
	assert.Equal(t, entities.Danger, got[1].Severity)
	assert.Equal(t, entities.KindPH, got[1].Kind)
}

func TestTick_DangerDispatchCarriesValue(t *testing.T) {
	s := entities.DefaultSettings()
	sim, d := setupSimulator(t, s, Config{AppOpen: func() bool { return true }})
	sim.mu.Lock()
	sim.states[entities.KindPH].current = 8.5
	sim.mu.Unlock()

	// +0.3*2 spike from 8.5 -> 9.1, deviation 0.6 > 0.4
	sim.rng = &scriptedRand{vals: phStep(0.5, 0.99, 0.9)}
	sim.Connect(context.Background())
	sim.Tick(context.Background())

	got := d.dispatched()
	require.Len(t, got, 1)
	assert.Equal(t, entities.Danger, got[0].Severity)
	assert.InDelta(t, 9.1, got[0].Current, 1e-9)
	assert.True(t, d.appOpen[0])
}

func TestTick_HistoryIsBounded(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{HistoryCapacity: 30})
	sim.rng = &scriptedRand{}
	sim.Connect(context.Background())

	for i := 0; i < 31; i++ {
		sim.Tick(context.Background())
	}
	for _, st := range sim.Snapshot() {
		assert.Len(t, st.History, 30)
		assert.Equal(t, st.Current, st.History[len(st.History)-1].Value)
	}
}

func TestTick_RearmOnRecovery(t *testing.T) {
	s := entities.DefaultSettings()
	s.Notifications.Thresholds[entities.KindPH] = entities.SafeRange{Low: 7.0, High: 7.5}
	sim, d := setupSimulator(t, s, Config{RearmOnRecovery: true})

	var script []float64
	script = append(script, phStep(0.99, 0.0)...) // warning
	script = append(script, phStep(0.0, 0.0)...)  // safe again
	sim.rng = &scriptedRand{vals: script}
	sim.Connect(context.Background())
	sim.Tick(context.Background())
	sim.Tick(context.Background())

	assert.Equal(t, []entities.SensorKind{entities.KindPH}, d.rearmed)
}

func TestTick_SinksReceiveBatchAndFailuresAreIsolated(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{})
	sim.rng = &scriptedRand{}

	var got []messages.SensorData
	sim.AddSink("broken", ReadingSinkFunc(func(context.Context, []messages.SensorData) error {
		return errors.New("broker down")
	}))
	sim.AddSink("capture", ReadingSinkFunc(func(_ context.Context, b []messages.SensorData) error {
		got = b
		return nil
	}))

	sim.Connect(context.Background())
	require.True(t, sim.Tick(context.Background()))
	require.Len(t, got, 4)
	assert.Equal(t, entities.KindPH, got[0].Kind)
	assert.Equal(t, entities.KindTurbidity, got[3].Kind)
	assert.Equal(t, "ppm", got[2].Unit)
}

func TestConnectDisconnect_Lifecycle(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{Interval: 5 * time.Millisecond})

	assert.True(t, sim.Connect(context.Background()))
	assert.False(t, sim.Connect(context.Background()))
	assert.True(t, sim.Connected())

	require.Eventually(t, func() bool {
		return len(sim.Snapshot()[0].History) == 60 && sim.Snapshot()[0].Current != 7.5
	}, time.Second, 5*time.Millisecond)

	assert.True(t, sim.Disconnect())
	assert.False(t, sim.Disconnect())

	frozen := sim.Snapshot()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, sim.Snapshot(), "no tick may run after Disconnect returns")
}

func TestReset_ReseedsAndClearsSession(t *testing.T) {
	sim, d := setupSimulator(t, nil, Config{})
	sim.rng = &scriptedRand{}
	sim.Connect(context.Background())
	sim.mu.Lock()
	sim.states[entities.KindTDS].current = 999
	sim.mu.Unlock()

	sim.Reset()
	assert.False(t, sim.Connected())
	assert.Equal(t, 350.0, sim.Snapshot()[2].Current)
	assert.Equal(t, 1, d.resets)
}

type fakeMessage struct {
	payload []byte
	dup     bool
}

func (m *fakeMessage) Duplicate() bool   { return m.dup }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "device/connection" }
func (m *fakeMessage) MessageID() uint16 { return 7 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

var _ mqtt.Message = (*fakeMessage)(nil)

func TestHandleConnectionMessage(t *testing.T) {
	sim, _ := setupSimulator(t, nil, Config{})
	h := sim.HandleConnectionMessage(context.Background())

	connect := []byte(`{"connected":true,"name":"ESP32","address":"AA:BB"}`)
	require.NoError(t, h("device/connection", &fakeMessage{payload: connect}))
	assert.True(t, sim.Connected())

	require.NoError(t, h("device/connection", &fakeMessage{payload: []byte(`{"connected":false}`)}))
	assert.False(t, sim.Connected())

	// a redelivered connect is dropped
	require.NoError(t, h("device/connection", &fakeMessage{payload: connect, dup: true}))
	assert.False(t, sim.Connected())

	// the same command sent fresh is honoured
	require.NoError(t, h("device/connection", &fakeMessage{payload: connect}))
	assert.True(t, sim.Connected())

	assert.Error(t, h("device/connection", &fakeMessage{payload: []byte("nope")}))
}
