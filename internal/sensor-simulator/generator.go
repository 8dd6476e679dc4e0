package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// Rand is the subset of *rand.Rand the simulator draws from.
type Rand interface {
	Float64() float64
}

const (
	// oscillationDiv sets the sine amplitude to span/oscillationDiv.
	oscillationDiv = 10.0
	// oscillationPeriod is the index divisor of the sine term.
	oscillationPeriod = 50.0
)

// Generate builds days*pointsPerDay synthetic readings, oldest first and one step apart,
// the last one step before now. Values are a uniform draw over r plus a slow sine,
// rounded to two decimals, so they can leave r by at most OscillationAmplitude(r).
func Generate(days, pointsPerDay int, r entities.SafeRange, now time.Time, rng Rand) []entities.Reading {
	if days <= 0 || pointsPerDay <= 0 {
		return []entities.Reading{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	total := days * pointsPerDay
	step := 24 * time.Hour / time.Duration(pointsPerDay)
	span := r.Span()

	out := make([]entities.Reading, 0, total)
	for i := 0; i < total; i++ {
		v := rng.Float64()*span + r.Low + math.Sin(float64(i)/oscillationPeriod)*span/oscillationDiv
		out = append(out, entities.Reading{
			Timestamp: now.Add(-time.Duration(total-i) * step),
			Value:     round2(v),
		})
	}
	return out
}

func OscillationAmplitude(r entities.SafeRange) float64 {
	return math.Abs(r.Span()) / oscillationDiv
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DataGenerator serializes access to a shared random source and clock.
type DataGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewDataGenerator seeds from the clock when seed is zero.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (g *DataGenerator) Generate(days, pointsPerDay int, r entities.SafeRange) []entities.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Generate(days, pointsPerDay, r, g.now(), g.rng)
}

func (g *DataGenerator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// TimeRange is a history viewer window.
type TimeRange string

const (
	Range24H TimeRange = "24H"
	Range7D  TimeRange = "7D"
	Range30D TimeRange = "30D"
)

// Days and PointsPerDay follow the viewer: 10-minute points for a day, hourly otherwise.
func (t TimeRange) Days() int {
	switch t {
	case Range7D:
		return 7
	case Range30D:
		return 30
	default:
		return 1
	}
}

func (t TimeRange) PointsPerDay() int {
	if t == Range24H {
		return 144
	}
	return 24
}

func (t TimeRange) Valid() bool {
	return t == Range24H || t == Range7D || t == Range30D
}

// History generates the viewer series for kind over t using the display range.
func (g *DataGenerator) History(kind entities.SensorKind, t TimeRange) []entities.Reading {
	return g.Generate(t.Days(), t.PointsPerDay(), entities.DisplayRanges()[kind])
}
