package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

// Output receives one aggregated reading per kind each cycle.
type Output interface {
	HandleReadings(ctx context.Context, readings []messages.SensorData) error
}

type namedOutput struct {
	name string
	out  Output
}

// DataAggregatorService buffers live readings and emits their per-kind mean every interval.
// Readings arrive in-process through HandleReadings or from MQTT through the consumer.
type DataAggregatorService struct {
	consumer            rabbitmq.IConsumer
	outputs             []namedOutput
	buffer              map[entities.SensorKind][]messages.SensorData
	mutex               sync.Mutex
	aggregationInterval time.Duration
	now                 func() time.Time
	logger              *zap.Logger
}

// NewDataAggregatorService accepts a nil consumer when readings are pushed in-process.
func NewDataAggregatorService(consumer rabbitmq.IConsumer, aggregationInterval time.Duration, logger *zap.Logger) *DataAggregatorService {
	if aggregationInterval <= 0 {
		aggregationInterval = time.Minute
	}
	return &DataAggregatorService{
		consumer:            consumer,
		aggregationInterval: aggregationInterval,
		buffer:              make(map[entities.SensorKind][]messages.SensorData),
		now:                 time.Now,
		logger:              logger,
	}
}

func (d *DataAggregatorService) AddOutput(name string, out Output) {
	d.mutex.Lock()
	d.outputs = append(d.outputs, namedOutput{name: name, out: out})
	d.mutex.Unlock()
}

// HandleReadings buffers a batch of live readings; aggregated ones are ignored.
func (d *DataAggregatorService) HandleReadings(_ context.Context, readings []messages.SensorData) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, r := range readings {
		if r.Aggregated || !r.Kind.Valid() {
			continue
		}
		d.buffer[r.Kind] = append(d.buffer[r.Kind], r)
	}
	return nil
}

func (d *DataAggregatorService) messageHandler(topic string, message mqtt.Message) error {
	var sensorData messages.SensorData
	if err := json.Unmarshal(message.Payload(), &sensorData); err != nil {
		return fmt.Errorf("unmarshal sensor data: %w", err)
	}
	if sensorData.Kind == "" {
		sensorData.Kind = entities.SensorKind(topic[strings.LastIndex(topic, "/")+1:])
	}
	return d.HandleReadings(context.Background(), []messages.SensorData{sensorData})
}

func (d *DataAggregatorService) Start(ctx context.Context) {
	if d.consumer != nil {
		d.consumer.SetHandler(d.messageHandler)
		go d.consumer.ConsumeMessage(ctx)
	}

	ticker := time.NewTicker(d.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Flush(ctx)
		}
	}
}

// Flush aggregates and emits whatever is buffered, then clears the buffer.
func (d *DataAggregatorService) Flush(ctx context.Context) []messages.SensorData {
	d.mutex.Lock()
	batch := make([]messages.SensorData, 0, len(entities.AllKinds))
	now := d.now()
	for _, kind := range entities.AllKinds {
		readings := d.buffer[kind]
		if len(readings) == 0 {
			continue
		}
		batch = append(batch, aggregate(kind, readings, now))
		d.buffer[kind] = readings[:0]
	}
	outputs := append([]namedOutput(nil), d.outputs...)
	d.mutex.Unlock()

	if len(batch) == 0 {
		return nil
	}
	for _, o := range outputs {
		if err := o.out.HandleReadings(ctx, batch); err != nil {
			d.logger.Warn("aggregator: output failed", zap.String("output", o.name), zap.Error(err))
		}
	}
	d.logger.Debug("aggregator: cycle published", zap.Int("kinds", len(batch)))
	return batch
}

// aggregate averages the window; the severity is the worst one seen in it.
func aggregate(kind entities.SensorKind, readings []messages.SensorData, now time.Time) messages.SensorData {
	sum := 0.0
	worst := entities.Safe
	for _, r := range readings {
		sum += r.Value
		if r.Severity > worst {
			worst = r.Severity
		}
	}
	return messages.SensorData{
		Kind:       kind,
		Unit:       kind.Unit(),
		Value:      sum / float64(len(readings)),
		Severity:   worst,
		Aggregated: true,
		Samples:    len(readings),
		Timestamp:  now,
	}
}
