package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/dedup"
)

type Outcome int

const (
	Suppressed Outcome = iota
	Forwarded
)

func (o Outcome) String() string {
	if o == Forwarded {
		return "forwarded"
	}
	return "suppressed"
}

// AlertSink receives every routed alert.
type AlertSink interface {
	HandleAlert(ctx context.Context, rec messages.AlertRecord) error
}

type AlertSinkFunc func(ctx context.Context, rec messages.AlertRecord) error

func (f AlertSinkFunc) HandleAlert(ctx context.Context, rec messages.AlertRecord) error {
	return f(ctx, rec)
}

type namedSink struct {
	name string
	sink AlertSink
}

type Config struct {
	// Timeout bounds each selector call.
	Timeout time.Duration
	// RecentLimit caps the in-memory list served to dashboards.
	RecentLimit int
	Metrics     *metrics.Metrics
}

// Dispatcher deduplicates alerts per (kind, severity) for the session and routes new
// ones through the selector off the caller's goroutine.
type Dispatcher struct {
	seen     *dedup.Deduper
	selector selector.Selector
	logger   *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	sinks  []namedSink
	recent []messages.AlertRecord
	limit  int

	wg    sync.WaitGroup
	now   func() time.Time
	newID func() string
}

func NewDispatcher(sel selector.Selector, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		seen:     dedup.New(0, 0),
		selector: sel,
		logger:   logger,
		metrics:  cfg.Metrics,
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		limit:    cfg.RecentLimit,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (d *Dispatcher) AddSink(name string, s AlertSink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
	d.mu.Unlock()
}

// Dispatch returns Suppressed if (kind, severity) was already notified this session.
// Otherwise it marks the key, starts the selector call and returns Forwarded at once.
// A failed call leaves the key marked.
func (d *Dispatcher) Dispatch(state entities.SensorState, prefs entities.UserPreferences, appOpen bool) Outcome {
	key := entities.AlertKey{Kind: state.Kind, Severity: state.Severity}
	if !d.seen.ShouldProcess(key.String()) {
		d.count(key, Suppressed)
		return Suppressed
	}
	d.count(key, Forwarded)

	req := messages.ChannelRequest{
		Urgency:         messages.UrgencyFor(state.Severity),
		UserPreferences: prefs,
		AppContext:      messages.AppContext{IsAppOpen: appOpen},
		SensorReading:   messages.FormatReading(state.Kind, state.Current),
	}

	d.mu.Lock()
	base := d.ctx
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.route(base, state, req)
	}()
	return Forwarded
}

func (d *Dispatcher) route(base context.Context, state entities.SensorState, req messages.ChannelRequest) {
	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	dec, err := d.selector.Select(ctx, req)
	if err == nil {
		err = dec.Validate()
	}
	if err != nil {
		d.logger.Warn("alerting: channel selection failed",
			zap.String("kind", string(state.Kind)),
			zap.String("severity", state.Severity.String()),
			zap.Error(err))
		if d.metrics != nil {
			d.metrics.SelectorFailures.WithLabelValues(string(state.Kind)).Inc()
		}
		return
	}
	if base.Err() != nil {
		// session ended while the call was in flight
		return
	}

	rec := messages.AlertRecord{
		ID:        d.newID(),
		Kind:      state.Kind,
		Severity:  state.Severity,
		Urgency:   req.Urgency,
		Value:     state.Current,
		Unit:      state.Kind.Unit(),
		Reading:   req.SensorReading,
		Channel:   dec.Channel,
		Reason:    dec.Reason,
		Timestamp: d.now(),
	}
	d.logger.Info("alerting: alert routed",
		zap.String("kind", string(rec.Kind)),
		zap.String("severity", rec.Severity.String()),
		zap.String("channel", string(rec.Channel)),
		zap.String("reading", rec.Reading))
	if d.metrics != nil {
		d.metrics.SelectorDecisions.WithLabelValues(string(rec.Channel)).Inc()
	}

	d.mu.Lock()
	d.recent = append(d.recent, rec)
	if len(d.recent) > d.limit {
		d.recent = d.recent[len(d.recent)-d.limit:]
	}
	sinks := append([]namedSink(nil), d.sinks...)
	d.mu.Unlock()

	for _, s := range sinks {
		if err := s.sink.HandleAlert(base, rec); err != nil {
			d.logger.Warn("alerting: sink failed", zap.String("sink", s.name), zap.Error(err))
			if d.metrics != nil {
				d.metrics.SinkFailures.WithLabelValues(s.name).Inc()
			}
		}
	}
}

func (d *Dispatcher) count(key entities.AlertKey, o Outcome) {
	if d.metrics != nil {
		d.metrics.Dispatches.WithLabelValues(string(key.Kind), key.Severity.String(), o.String()).Inc()
	}
}

// Rearm forgets every notified severity of kind.
func (d *Dispatcher) Rearm(kind entities.SensorKind) {
	if n := d.seen.ForgetPrefix(string(kind) + "-"); n > 0 {
		d.logger.Debug("alerting: re-armed", zap.String("kind", string(kind)), zap.Int("keys", n))
	}
}

// Reset starts a new session: notified keys are cleared and calls still in flight are abandoned.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.cancel()
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.recent = nil
	d.mu.Unlock()
	d.seen.Reset()
}

// Wait blocks until all selector calls started so far have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close abandons in-flight calls and waits for their goroutines.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Notified() []entities.AlertKey {
	keys := d.seen.Keys()
	out := make([]entities.AlertKey, 0, len(keys))
	for _, k := range keys {
		if ak, err := entities.ParseAlertKey(k); err == nil {
			out = append(out, ak)
		}
	}
	return out
}

// Recent returns the routed alerts of this session, newest last.
func (d *Dispatcher) Recent() []messages.AlertRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]messages.AlertRecord(nil), d.recent...)
}
