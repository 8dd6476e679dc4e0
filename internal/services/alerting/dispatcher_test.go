package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
)

type recordingSelector struct {
	mu    sync.Mutex
	reqs  []messages.ChannelRequest
	reply messages.ChannelDecision
	err   error
}

func (r *recordingSelector) Select(_ context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.reply, r.err
}

func (r *recordingSelector) requests() []messages.ChannelRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.ChannelRequest(nil), r.reqs...)
}

type recordingSink struct {
	mu   sync.Mutex
	recs []messages.AlertRecord
}

func (s *recordingSink) HandleAlert(_ context.Context, rec messages.AlertRecord) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

var defaultPrefs = entities.UserPreferences{PreferredChannel: entities.ChannelPush, AllowPushNotifications: true}

func setupDispatcher(t *testing.T, sel selector.Selector) (*Dispatcher, *recordingSink, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	d := NewDispatcher(sel, Config{Timeout: time.Second, Metrics: m}, zap.NewNop())
	d.newID = func() string { return "alert-1" }
	sink := &recordingSink{}
	d.AddSink("test", sink)
	t.Cleanup(d.Close)
	return d, sink, m
}

func phState(v float64, s entities.Severity) entities.SensorState {
	return entities.SensorState{Kind: entities.KindPH, Current: v, Severity: s}
}

func TestDispatch_EndToEndDanger(t *testing.T) {
	sel := &recordingSelector{reply: messages.ChannelDecision{Channel: entities.ChannelEmail, Reason: "urgent"}}
	d, sink, _ := setupDispatcher(t, sel)

	out := d.Dispatch(phState(9.0, entities.Danger), defaultPrefs, false)
	assert.Equal(t, Forwarded, out)
	d.Wait()

	reqs := sel.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, messages.UrgencyHigh, reqs[0].Urgency)
	assert.Equal(t, "pH is 9.00 ", reqs[0].SensorReading)
	assert.Equal(t, defaultPrefs, reqs[0].UserPreferences)
	assert.False(t, reqs[0].AppContext.IsAppOpen)

	require.Len(t, sink.recs, 1)
	rec := sink.recs[0]
	assert.Equal(t, "alert-1", rec.ID)
	assert.Equal(t, entities.ChannelEmail, rec.Channel)
	assert.Equal(t, "urgent", rec.Reason)
	assert.Equal(t, entities.Danger, rec.Severity)
	assert.Equal(t, []messages.AlertRecord{rec}, d.Recent())
}

func TestDispatch_IdempotentPerKey(t *testing.T) {
	sel := &recordingSelector{reply: messages.ChannelDecision{Channel: entities.ChannelPush}}
	d, _, m := setupDispatcher(t, sel)

	assert.Equal(t, Forwarded, d.Dispatch(phState(8.7, entities.Warning), defaultPrefs, true))
	assert.Equal(t, Suppressed, d.Dispatch(phState(8.8, entities.Warning), defaultPrefs, true))
	assert.Equal(t, Forwarded, d.Dispatch(phState(9.5, entities.Danger), defaultPrefs, true))
	d.Wait()

	assert.Len(t, sel.requests(), 2)
	assert.Equal(t, []entities.AlertKey{
		{Kind: entities.KindPH, Severity: entities.Danger},
		{Kind: entities.KindPH, Severity: entities.Warning},
	}, d.Notified())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("pH", "warning", "suppressed")))
}

func TestDispatch_SelectorFailureKeepsKeyMarked(t *testing.T) {
	sel := &recordingSelector{err: errors.New("quota exceeded")}
	d, sink, m := setupDispatcher(t, sel)

	assert.Equal(t, Forwarded, d.Dispatch(phState(9, entities.Danger), defaultPrefs, false))
	d.Wait()
	assert.Empty(t, sink.recs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectorFailures.WithLabelValues("pH")))

	assert.Equal(t, Suppressed, d.Dispatch(phState(9, entities.Danger), defaultPrefs, false))
}

func TestDispatch_InvalidDecisionIsFailure(t *testing.T) {
	sel := &recordingSelector{reply: messages.ChannelDecision{Channel: "carrier-pigeon"}}
	d, sink, _ := setupDispatcher(t, sel)

	d.Dispatch(phState(9, entities.Danger), defaultPrefs, false)
	d.Wait()
	assert.Empty(t, sink.recs)
}

func TestDispatch_DoesNotBlockOnSlowSelector(t *testing.T) {
	release := make(chan struct{})
	slow := selector.Func(func(ctx context.Context, _ messages.ChannelRequest) (messages.ChannelDecision, error) {
		<-release
		return messages.ChannelDecision{Channel: entities.ChannelPush}, nil
	})
	d, sink, _ := setupDispatcher(t, slow)

	done := make(chan Outcome, 1)
	go func() { done <- d.Dispatch(phState(9, entities.Danger), defaultPrefs, true) }()
	select {
	case out := <-done:
		assert.Equal(t, Forwarded, out)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the selector")
	}
	close(release)
	d.Wait()
	assert.Len(t, sink.recs, 1)
}

func TestRearmAndReset(t *testing.T) {
	sel := &recordingSelector{reply: messages.ChannelDecision{Channel: entities.ChannelPush}}
	d, _, _ := setupDispatcher(t, sel)

	d.Dispatch(phState(9, entities.Danger), defaultPrefs, true)
	d.Dispatch(entities.SensorState{Kind: entities.KindTDS, Current: 700, Severity: entities.Danger}, defaultPrefs, true)
	d.Wait()

	d.Rearm(entities.KindPH)
	assert.Equal(t, []entities.AlertKey{{Kind: entities.KindTDS, Severity: entities.Danger}}, d.Notified())
	assert.Equal(t, Forwarded, d.Dispatch(phState(9, entities.Danger), defaultPrefs, true))
	d.Wait()

	d.Reset()
	assert.Empty(t, d.Notified())
	assert.Empty(t, d.Recent())
}

func TestReset_AbandonsInFlightCall(t *testing.T) {
	started := make(chan struct{})
	blocking := selector.Func(func(ctx context.Context, _ messages.ChannelRequest) (messages.ChannelDecision, error) {
		close(started)
		<-ctx.Done()
		return messages.ChannelDecision{}, ctx.Err()
	})
	d, sink, _ := setupDispatcher(t, blocking)

	d.Dispatch(phState(9, entities.Danger), defaultPrefs, false)
	<-started
	d.Reset()
	d.Wait()
	assert.Empty(t, sink.recs)
}
