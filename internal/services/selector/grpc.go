package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

const (
	serviceName  = "aquamonitor.selector.v1.ChannelSelector"
	selectMethod = "/" + serviceName + "/Select"
)

// Requests and decisions travel as google.protobuf.Struct carrying the JSON shape.
type channelSelectorServer interface {
	SelectStruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*channelSelectorServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Select",
		Handler:    selectHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aquamonitor/selector.proto",
}

func selectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(channelSelectorServer).SelectStruct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: selectMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(channelSelectorServer).SelectStruct(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer adapts a Selector to the gRPC service.
type GRPCServer struct {
	sel    Selector
	logger *zap.Logger
}

func RegisterGRPC(s *grpc.Server, sel Selector, logger *zap.Logger) {
	s.RegisterService(&serviceDesc, &GRPCServer{sel: sel, logger: logger})
}

func (g *GRPCServer) SelectStruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req messages.ChannelRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := validateRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	dec, err := g.sel.Select(ctx, req)
	if err != nil {
		g.logger.Error("selector: grpc select failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "selection failed")
	}
	out, err := toStruct(dec)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode decision: %v", err)
	}
	return out, nil
}

// GRPCSelector is the client side, guarded by its own breaker.
type GRPCSelector struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

func NewGRPCSelector(conn grpc.ClientConnInterface, timeout time.Duration, bs BreakerSettings) *GRPCSelector {
	return &GRPCSelector{
		conn:    conn,
		timeout: timeout,
		breaker: NewBreaker("channel-selector-grpc", bs),
	}
}

func (c *GRPCSelector) Select(ctx context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error) {
	in, err := toStruct(req)
	if err != nil {
		return messages.ChannelDecision{}, fmt.Errorf("encode request: %w", err)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		out := new(structpb.Struct)
		if err := c.conn.Invoke(callCtx, selectMethod, in, out); err != nil {
			return nil, fmt.Errorf("selector grpc call: %w", err)
		}
		var dec messages.ChannelDecision
		if err := fromStruct(out, &dec); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		if err := dec.Validate(); err != nil {
			return nil, err
		}
		return dec, nil
	})
	if err != nil {
		return messages.ChannelDecision{}, err
	}
	return res.(messages.ChannelDecision), nil
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
