package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDial(t *testing.T) {
	bs := BreakerSettings{Failures: 3, OpenFor: time.Second}

	sel, closeFn, err := Dial(TransportHTTP, "http://localhost:8090", time.Second, bs, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPSelector{}, sel)
	assert.NoError(t, closeFn())

	sel, closeFn, err = Dial(TransportGRPC, "http://localhost:9090", time.Second, bs, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GRPCSelector{}, sel)
	assert.NoError(t, closeFn())

	_, _, err = Dial("carrier-pigeon", "", time.Second, bs, zap.NewNop())
	assert.Error(t, err)
}
