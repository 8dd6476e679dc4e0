package selector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

var testBreaker = BreakerSettings{Failures: 2, OpenFor: time.Minute}

func TestHTTPSelector_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(RuleSelector{}, zap.NewNop()))
	defer srv.Close()

	sel := NewHTTPSelector(srv.URL, time.Second, testBreaker, zap.NewNop())
	dec, err := sel.Select(context.Background(), request(messages.UrgencyHigh, entities.ChannelPush, true, false))
	require.NoError(t, err)
	assert.Equal(t, entities.ChannelEmail, dec.Channel)
	assert.NotEmpty(t, dec.Reason)
}

func TestHTTPSelector_RejectsUnknownChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"channel":"sms","reason":"x"}`))
	}))
	defer srv.Close()

	sel := NewHTTPSelector(srv.URL, time.Second, testBreaker, zap.NewNop())
	_, err := sel.Select(context.Background(), request(messages.UrgencyLow, entities.ChannelPush, true, true))
	assert.ErrorIs(t, err, messages.ErrInvalidDecision)
}

func TestHTTPSelector_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sel := NewHTTPSelector(srv.URL, time.Second, testBreaker, zap.NewNop())
	req := request(messages.UrgencyLow, entities.ChannelPush, true, true)
	for i := 0; i < 2; i++ {
		_, err := sel.Select(context.Background(), req)
		require.Error(t, err)
	}
	_, err := sel.Select(context.Background(), req)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPHandler_BadRequests(t *testing.T) {
	h := NewHTTPHandler(RuleSelector{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/select", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	body := `{"urgency":"extreme","sensorReading":"pH is 9.00 "}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "urgency")
}

func TestHTTPHandler_SelectorFailure(t *testing.T) {
	failing := Func(func(context.Context, messages.ChannelRequest) (messages.ChannelDecision, error) {
		return messages.ChannelDecision{}, errors.New("model unavailable")
	})
	h := NewHTTPHandler(failing, zap.NewNop())
	rec := httptest.NewRecorder()
	body := `{"urgency":"high","sensorReading":"pH is 9.00 "}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(body)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
