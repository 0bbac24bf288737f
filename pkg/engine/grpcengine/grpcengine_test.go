package grpcengine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newController(e *Engine) *lifecycle.Controller {
	return lifecycle.New(e, lifecycle.Config{
		Name:          "grpc",
		CheckInterval: 10 * time.Millisecond,
	}, nil, lifecycle.WithStrictStartup())
}

func healthStatus(t *testing.T, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func TestLifecycle(t *testing.T) {
	var registered bool
	e := New(Config{BindAddress: "127.0.0.1"}, "grpc", func(s *grpc.Server) {
		registered = s != nil
	})
	assert.True(t, registered)
	assert.True(t, e.IsStopped())
	assert.False(t, e.IsServing())

	ctrl := newController(e)
	require.NoError(t, ctrl.Startup())
	assert.True(t, e.IsServing())
	assert.False(t, e.IsStopped())

	status, err := healthStatus(t, e.Addr())
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	require.NoError(t, ctrl.Shutdown())
	assert.True(t, e.IsStopped())
	assert.False(t, e.IsServing())
	assert.False(t, ctrl.Failed())
}

func TestStopBeforeServe(t *testing.T) {
	e := New(Config{BindAddress: "127.0.0.1"}, "grpc")
	e.Stop()

	require.NoError(t, e.Serve())
	assert.Empty(t, e.Addr())
	assert.Eventually(t, e.IsStopped, time.Second, 5*time.Millisecond)
}

func TestListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	port := occupied.Addr().(*net.TCPAddr).Port
	e := New(Config{BindAddress: "127.0.0.1", Port: port}, "grpc")

	ctrl := newController(e)
	err = ctrl.Startup()
	assert.ErrorIs(t, err, lifecycle.ErrEngineFailed)
	require.NoError(t, ctrl.Shutdown())
}

func TestDefaultDrainTimeout(t *testing.T) {
	e := New(Config{}, "grpc")
	assert.Equal(t, DefaultDrainTimeout, e.cfg.DrainTimeout)
	assert.NotNil(t, e.Server())
}
