package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/aquamonitor/internal/config"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/logger"
)

// channel-selector serves the rule-based policy over both HTTP and gRPC.
func main() {
	cfg, err := config.Load(os.Getenv("AQUA_CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "channel-selector")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sel selector.RuleSelector

	addr := ":" + strconv.Itoa(cfg.Selector.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", addr), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	selector.RegisterGRPC(grpcServer, sel, log)
	go func() {
		log.Info("channel-selector: gRPC listening", zap.String("addr", addr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Selector.HTTPPort),
		Handler:           selector.NewHTTPHandler(sel, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("channel-selector: HTTP listening", zap.Int("port", cfg.Selector.HTTPPort))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	grpcServer.GracefulStop()
}
