package selector

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Dial builds the selector client for transport. The returned func releases the connection.
func Dial(transport, target string, timeout time.Duration, bs BreakerSettings, logger *zap.Logger) (Selector, func() error, error) {
	switch transport {
	case TransportHTTP:
		return NewHTTPSelector(target, timeout, bs, logger), func() error { return nil }, nil
	case TransportGRPC:
		target = strings.TrimPrefix(strings.TrimPrefix(target, "http://"), "https://")
		conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial selector %s: %w", target, err)
		}
		return NewGRPCSelector(conn, timeout, bs), conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown selector transport %q", transport)
	}
}
