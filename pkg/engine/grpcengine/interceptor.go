package grpcengine

import (
	"context"
	"time"

	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/internal/telemetry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// StatsRecorder receives one record per completed RPC.
type StatsRecorder interface {
	RecordRequest(method string, d time.Duration, bytesIn, bytesOut int, failed bool)
}

// UnaryInterceptor traces each unary RPC and records it into rec, which
// may be nil. Health checks are not recorded.
func UnaryInterceptor(rec StatsRecorder) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == healthCheckMethod {
			return handler(ctx, req)
		}

		ctx, span := telemetry.StartRPCSpan(ctx, info.FullMethod, 0)
		defer span.End()

		start := time.Now()
		resp, err := handler(ctx, req)
		d := time.Since(start)

		if err != nil {
			telemetry.RecordError(ctx, err)
			logger.DebugCtx(ctx, "gRPC call failed",
				logger.KeyMethod, info.FullMethod,
				logger.KeyStatus, status.Code(err).String(),
				logger.KeyError, err)
		}
		if rec != nil {
			rec.RecordRequest(info.FullMethod, d, messageSize(req), messageSize(resp), err != nil)
		}
		return resp, err
	}
}

const healthCheckMethod = "/grpc.health.v1.Health/Check"

func messageSize(m any) int {
	if pm, ok := m.(proto.Message); ok && pm != nil {
		return proto.Size(pm)
	}
	return 0
}
