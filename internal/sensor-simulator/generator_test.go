package sensor_simulator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

func TestGenerate_ShapeAndSpacing(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := entities.SafeRange{Low: 7.2, High: 7.8}

	out := Generate(1, 60, r, now, rand.New(rand.NewSource(1)))
	require.Len(t, out, 60)

	step := 24 * time.Minute
	assert.Equal(t, now.Add(-60*step), out[0].Timestamp)
	assert.Equal(t, now.Add(-step), out[59].Timestamp)
	for i := 1; i < len(out); i++ {
		assert.Equal(t, step, out[i].Timestamp.Sub(out[i-1].Timestamp))
	}

	amp := OscillationAmplitude(r)
	for _, p := range out {
		assert.GreaterOrEqual(t, p.Value, r.Low-amp-0.005)
		assert.LessOrEqual(t, p.Value, r.High+amp+0.005)
	}
}

func TestGenerate_RoundsToTwoDecimals(t *testing.T) {
	out := Generate(1, 24, entities.SafeRange{Low: 0, High: 500}, time.Now(), rand.New(rand.NewSource(3)))
	for _, p := range out {
		assert.InDelta(t, p.Value, round2(p.Value), 1e-9)
	}
}

func TestGenerate_Empty(t *testing.T) {
	assert.Empty(t, Generate(0, 144, entities.SafeRange{Low: 0, High: 1}, time.Now(), nil))
	assert.Empty(t, Generate(3, 0, entities.SafeRange{Low: 0, High: 1}, time.Now(), nil))
}

func TestGenerate_DeterministicWithSeed(t *testing.T) {
	now := time.Now()
	r := entities.SafeRange{Low: 10, High: 25}
	a := Generate(2, 24, r, now, rand.New(rand.NewSource(42)))
	b := Generate(2, 24, r, now, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestTimeRange(t *testing.T) {
	assert.Equal(t, 144, Range24H.PointsPerDay())
	assert.Equal(t, 24, Range7D.PointsPerDay())
	assert.Equal(t, 30, Range30D.Days())
	assert.False(t, TimeRange("1Y").Valid())

	g := NewDataGenerator(7)
	assert.Len(t, g.History(entities.KindTDS, Range7D), 7*24)
	assert.Len(t, g.History(entities.KindPH, Range24H), 144)
}
