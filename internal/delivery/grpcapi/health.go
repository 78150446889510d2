package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health check service name of the payment API.
const ServiceName = "payment.PaymentService"

// Health wraps the stock gRPC health service. Readiness starts NOT_SERVING.
type Health struct {
	srv *health.Server
}

func NewHealth() *Health {
	srv := health.NewServer()
	srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: srv}
}

func (h *Health) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.srv)
}

func (h *Health) SetServing() {
	h.srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

// Watch probes ping every interval and flips readiness until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration, ping func(ctx context.Context) error, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ping(ctx)
			switch {
			case err != nil && serving:
				logger.Warn("readiness probe failed", zap.Error(err))
				h.srv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				logger.Info("readiness restored")
				h.srv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}

// NewServer builds the gRPC server with failed-call logging.
func NewServer(logger *zap.Logger) *grpc.Server {
	return grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc call failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		return resp, err
	}
}
