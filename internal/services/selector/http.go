package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

const selectPath = "/select"

// HTTPSelector calls a remote selector over JSON/HTTP behind a circuit breaker.
type HTTPSelector struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewHTTPSelector(baseURL string, timeout time.Duration, bs BreakerSettings, logger *zap.Logger) *HTTPSelector {
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPSelector{
		client:  client,
		breaker: NewBreaker("channel-selector-http", bs),
		logger:  logger,
	}
}

func (s *HTTPSelector) Select(ctx context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var out messages.ChannelDecision
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post(selectPath)
		if err != nil {
			return nil, fmt.Errorf("selector request error: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("selector upstream status %d", resp.StatusCode())
		}
		if err := out.Validate(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		s.logger.Debug("selector: http call failed", zap.String("state", s.breaker.State().String()), zap.Error(err))
		return messages.ChannelDecision{}, err
	}
	return res.(messages.ChannelDecision), nil
}

// NewHTTPHandler exposes sel as POST /select.
func NewHTTPHandler(sel Selector, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post(selectPath, func(w http.ResponseWriter, r *http.Request) {
		var req messages.ChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validateRequest(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dec, err := sel.Select(r.Context(), req)
		if err != nil {
			logger.Error("selector: select failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "selection failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dec)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func validateRequest(req messages.ChannelRequest) error {
	switch req.Urgency {
	case messages.UrgencyHigh, messages.UrgencyMedium, messages.UrgencyLow:
	default:
		return fmt.Errorf("unknown urgency %q", req.Urgency)
	}
	if strings.TrimSpace(req.SensorReading) == "" {
		return fmt.Errorf("sensorReading is required")
	}
	return nil
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
