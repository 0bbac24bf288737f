package grpcengine

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestUnaryInterceptorRecords(t *testing.T) {
	st := stats.New()
	icpt := UnaryInterceptor(st)

	req := &healthpb.HealthCheckRequest{Service: "svc"}
	info := &grpc.UnaryServerInfo{FullMethod: "/demo.Service/Call"}

	resp, err := icpt(context.Background(), req, info, func(ctx context.Context, req any) (any, error) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, resp)

	_, err = icpt(context.Background(), req, info, func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	snap := st.Snapshot()
	assert.EqualValues(t, 2, snap.Requests)
	assert.EqualValues(t, 1, snap.Errors)
	assert.Positive(t, snap.BytesIn)
}

func TestUnaryInterceptorSkipsHealth(t *testing.T) {
	st := stats.New()
	icpt := UnaryInterceptor(st)

	_, err := icpt(context.Background(), &healthpb.HealthCheckRequest{},
		&grpc.UnaryServerInfo{FullMethod: healthCheckMethod},
		func(ctx context.Context, req any) (any, error) { return &healthpb.HealthCheckResponse{}, nil })
	require.NoError(t, err)
	assert.Zero(t, st.Requests())
}

func TestUnaryInterceptorNilRecorder(t *testing.T) {
	icpt := UnaryInterceptor(nil)
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/demo.Service/Call"},
		func(ctx context.Context, req any) (any, error) { return nil, nil })
	assert.NoError(t, err)
}
