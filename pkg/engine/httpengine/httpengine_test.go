package httpengine

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, mount func(chi.Router)) (*Engine, *lifecycle.Controller) {
	t.Helper()
	e := New(Config{BindAddress: "127.0.0.1", DrainTimeout: time.Second}, "http", mount)
	ctrl := lifecycle.New(e, lifecycle.Config{
		Name:          "http",
		CheckInterval: 10 * time.Millisecond,
	}, nil, lifecycle.WithStrictStartup())
	require.NoError(t, ctrl.Startup())
	return e, ctrl
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealthAndShutdown(t *testing.T) {
	e, ctrl := startEngine(t, nil)
	assert.True(t, e.IsServing())

	code, body := get(t, "http://"+e.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, code)

	var resp Response
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)

	require.NoError(t, ctrl.Shutdown())
	assert.True(t, e.IsStopped())
	assert.False(t, e.IsServing())
	assert.False(t, ctrl.Failed())
}

func TestServiceRoutes(t *testing.T) {
	st := stats.New()
	e, ctrl := startEngine(t, ServiceRoutes(st))
	defer func() { require.NoError(t, ctrl.Shutdown()) }()
	base := "http://" + e.Addr()

	code, body := get(t, base+"/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", string(body))

	resp, err := http.Post(base+"/echo", "application/octet-stream", strings.NewReader("hello"))
	require.NoError(t, err)
	echoed, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(echoed))

	code, body = get(t, base+"/stats")
	assert.Equal(t, http.StatusOK, code)

	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.EqualValues(t, 2, snap.Requests)
}

func TestMetricsRoutes(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	e, ctrl := startEngine(t, MetricsRoutes(nil))
	defer func() { require.NoError(t, ctrl.Shutdown()) }()

	code, body := get(t, "http://"+e.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "go_goroutines")

	code, _ = get(t, "http://"+e.Addr()+"/stats")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStopBeforeServe(t *testing.T) {
	e := New(Config{BindAddress: "127.0.0.1"}, "http", nil)
	e.Stop()
	require.NoError(t, e.Serve())
	assert.Eventually(t, e.IsStopped, time.Second, 5*time.Millisecond)
}

func TestListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	e := New(Config{BindAddress: "127.0.0.1", Port: occupied.Addr().(*net.TCPAddr).Port}, "http", nil)
	err = e.Serve()
	require.Error(t, err)
	assert.True(t, e.IsStopped())
	assert.False(t, e.IsServing())
}
