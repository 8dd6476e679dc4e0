package selector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

func setupGRPC(t *testing.T, sel Selector) *GRPCSelector {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterGRPC(srv, sel, zap.NewNop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewGRPCSelector(conn, time.Second, testBreaker)
}

func TestGRPCSelector_RoundTrip(t *testing.T) {
	client := setupGRPC(t, RuleSelector{})

	dec, err := client.Select(context.Background(), request(messages.UrgencyMedium, entities.ChannelEmail, true, false))
	require.NoError(t, err)
	assert.Equal(t, entities.ChannelEmail, dec.Channel)
	assert.Equal(t, "Using the user's preferred channel.", dec.Reason)
}

func TestGRPCSelector_InvalidRequest(t *testing.T) {
	client := setupGRPC(t, RuleSelector{})

	req := request("", entities.ChannelPush, true, true)
	_, err := client.Select(context.Background(), req)
	assert.Error(t, err)
}

func TestStructConversion(t *testing.T) {
	req := request(messages.UrgencyHigh, entities.ChannelPush, false, true)
	s, err := toStruct(req)
	require.NoError(t, err)
	assert.Equal(t, "high", s.GetFields()["urgency"].GetStringValue())
	assert.True(t, s.GetFields()["appContext"].GetStructValue().GetFields()["isAppOpen"].GetBoolValue())

	var back messages.ChannelRequest
	require.NoError(t, fromStruct(s, &back))
	assert.Equal(t, req, back)
}
