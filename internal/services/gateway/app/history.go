package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	sensorSimulator "github.com/LeonardoBeccarini/aquamonitor/internal/sensor-simulator"
)

const (
	SourceGenerated = "generated"
	SourceInflux    = "influx"

	dataSourceHeader = "X-Data-Source"
)

var errEmptyHistory = errors.New("empty history")

type historyQuery struct {
	kind   entities.SensorKind
	rng    sensorSimulator.TimeRange
	source string
}

func parseHistoryQuery(r *http.Request, kindParam string) (historyQuery, error) {
	kind, err := entities.ParseSensorKind(kindParam)
	if err != nil {
		return historyQuery{}, err
	}
	q := historyQuery{kind: kind, rng: sensorSimulator.Range7D, source: SourceGenerated}
	if v := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("range"))); v != "" {
		q.rng = sensorSimulator.TimeRange(v)
		if !q.rng.Valid() {
			return historyQuery{}, errors.New("range must be one of 24H, 7D, 30D")
		}
	}
	if v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("source"))); v != "" {
		if v != SourceGenerated && v != SourceInflux {
			return historyQuery{}, errors.New("source must be generated or influx")
		}
		q.source = v
	}
	return q, nil
}

// history serves stored readings when asked and available, falling back to generated data
// when InfluxDB is disabled, failing or empty, or its breaker is open.
func (g *Gateway) history(ctx context.Context, q historyQuery) ([]entities.Reading, string) {
	if q.source == SourceInflux && g.deps.Stored != nil {
		span := time.Duration(q.rng.Days()) * 24 * time.Hour
		every := 24 * time.Hour / time.Duration(q.rng.PointsPerDay())

		res, err := g.historyB.Execute(func() (interface{}, error) {
			qctx, cancel := context.WithTimeout(ctx, g.cfg.HTTPTimeout)
			defer cancel()
			readings, err := g.deps.Stored.Query(qctx, q.kind, span, every)
			if err != nil {
				return nil, err
			}
			if len(readings) == 0 {
				return nil, errEmptyHistory
			}
			return readings, nil
		})
		if err == nil {
			return res.([]entities.Reading), SourceInflux
		}
		g.logger.Warn("gateway: stored history unavailable, using generated",
			zap.String("kind", string(q.kind)),
			zap.String("breaker", g.historyB.State().String()),
			zap.Error(err))
	}
	return g.deps.Generator.History(q.kind, q.rng), SourceGenerated
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request, kindParam string) {
	q, err := parseHistoryQuery(r, kindParam)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	readings, source := g.history(r.Context(), q)
	w.Header().Set(dataSourceHeader, source)
	writeJSON(w, http.StatusOK, HistoryResponse{
		Kind:    q.kind,
		Unit:    q.kind.Unit(),
		Range:   string(q.rng),
		Display: entities.DisplayRanges()[q.kind],
		Source:  source,
		Points:  toPoints(readings),
	})
}
