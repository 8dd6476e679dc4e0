package selector

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

// Selector picks the delivery channel for an alert.
type Selector interface {
	Select(ctx context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error)
}

// Func adapts a plain function to Selector.
type Func func(ctx context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error)

func (f Func) Select(ctx context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error) {
	return f(ctx, req)
}

type BreakerSettings struct {
	Failures int
	OpenFor  time.Duration
	Interval time.Duration
}

// NewBreaker trips after Failures consecutive errors and half-opens after OpenFor.
func NewBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	fails := s.Failures
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}
