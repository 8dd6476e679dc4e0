package event

import (
	"context"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

// PointWriter is the part of api.WriteAPI the writer needs.
type PointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
	Flush()
}

// Writer wraps the non-blocking WriteAPI and records the last asynchronous write error
// for /healthz and /readyz.
type Writer struct {
	api     PointWriter
	logger  *zap.Logger
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewWriter(w PointWriter, logger *zap.Logger) *Writer {
	ww := &Writer{
		api:     w,
		logger:  logger,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				logger.Warn("influx: write error", zap.Error(err))
			}
		}
	}()
	return ww
}

func (w *Writer) HandleReadings(_ context.Context, readings []messages.SensorData) error {
	for _, d := range readings {
		w.api.WritePoint(ReadingToPoint(d))
		w.MarkIngest(MeasurementReading)
	}
	return nil
}

func (w *Writer) HandleAlert(_ context.Context, rec messages.AlertRecord) error {
	w.api.WritePoint(AlertToPoint(rec))
	w.MarkIngest(MeasurementAlert)
	return nil
}

// WritePoint forwards an already built point.
func (w *Writer) WritePoint(p *write.Point) {
	w.api.WritePoint(p)
}

func (w *Writer) Flush() {
	w.api.Flush()
}

// LastErrorAge is how long ago the last write error happened.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) MarkIngest(measurement string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.counts[measurement]++
	w.mu.Unlock()
}

func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[measurement]
	w.mu.RUnlock()
	return c
}
