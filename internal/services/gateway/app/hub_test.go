package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_BroadcastAndShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := &Client{Hub: hub, Send: make(chan []byte, 1), logger: zap.NewNop()}
	hub.RegisterClient(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(MessageAlert, map[string]string{"kind": "pH"})
	select {
	case b := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		assert.Equal(t, MessageAlert, env.Type)
	case <-time.After(time.Second):
		t.Fatal("no broadcast")
	}

	cancel()
	select {
	case _, ok := <-c.Send:
		assert.False(t, ok, "send channel is closed on shutdown")
	case <-time.After(time.Second):
		t.Fatal("client not released")
	}
	hub.unregisterClient(c) // must not block once the hub is gone
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &Client{Hub: hub, Send: make(chan []byte), logger: zap.NewNop()}
	hub.RegisterClient(slow)
	hub.Broadcast(MessageSnapshot, nil)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
