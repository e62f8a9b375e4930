package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-points-ledger/pkg/ledgerrpc"
)

// NewServer 建立 gRPC server，註冊 LedgerService、health 與 reflection
//
// 回傳:
//
//	*grpc.Server: 尚未 Serve 的 server
//	*health.Server: 關閉前呼叫 Shutdown 讓 health check 回報 NOT_SERVING
func NewServer(srv *GrpcServer, log *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(log))}, opts...)
	s := grpc.NewServer(opts...)
	ledgerrpc.RegisterLedgerServiceServer(s, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ledgerrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	// 方便 grpcurl 之類的工具列出服務
	reflection.Register(s)
	return s, healthServer
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
