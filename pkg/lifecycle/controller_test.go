package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer shared with the runner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logger.InitWithWriter(buf, "DEBUG", "text", false)
	t.Cleanup(func() {
		logger.InitWithWriter(os.Stderr, "INFO", "text", false)
	})
	return buf
}

// countingSleep replaces the controller's sleep. onSleep runs after each
// simulated interval with the number of sleeps so far.
func countingSleep(c *Controller, onSleep func(n int)) *int {
	n := new(int)
	c.sleep = func(time.Duration) {
		*n++
		if onSleep != nil {
			onSleep(*n)
		}
	}
	return n
}

func stopEngine(t *testing.T, e *fakeEngine) {
	t.Cleanup(e.Stop)
}

func TestStartupServesAfterIntervals(t *testing.T) {
	e := newFakeEngine()
	e.serveAfter = -1
	stopEngine(t, e)

	c := New(e, Config{Name: "framed", Port: 9090}, nil)
	sleeps := countingSleep(c, func(n int) {
		if n == 3 {
			e.serving.Store(true)
		}
	})

	require.NoError(t, c.Startup())
	assert.Equal(t, 3, *sleeps)
	assert.False(t, c.Failed())
	assert.Equal(t, StateServing, c.State())
}

func TestStartupTimeout(t *testing.T) {
	buf := captureLogs(t)
	e := newFakeEngine()
	e.serveAfter = -1
	stopEngine(t, e)

	c := New(e, Config{Name: "framed", StartupTimeout: 5 * time.Second, CheckInterval: time.Second}, nil)
	sleeps := countingSleep(c, nil)

	err := c.Startup()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStartupTimeout))

	var timeoutErr *StartupTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "framed", timeoutErr.Engine)
	assert.Equal(t, 5*time.Second, timeoutErr.Timeout)
	assert.Equal(t, 6*time.Second, timeoutErr.Waited)
	assert.Contains(t, err.Error(), "5s")
	assert.Equal(t, 6, *sleeps)
	assert.Contains(t, buf.String(), "Waiting for engine to start")
}

func TestStartupServeFailsImmediately(t *testing.T) {
	buf := captureLogs(t)
	boom := errors.New("listen tcp :9090: address already in use")
	e := newFakeEngine()
	e.serveErr = boom

	c := New(e, Config{Name: "framed", Port: 9090, CheckInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, c.Startup())
	assert.True(t, c.Failed())
	assert.Equal(t, StateFailed, c.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, c.Runner().Wait(ctx), boom)
	assert.ErrorIs(t, c.Runner().Err(), boom)

	logs := buf.String()
	assert.Contains(t, logs, "Engine failed")
	assert.Contains(t, logs, "port=9090")
	assert.Contains(t, logs, "Engine failed to start")
	assert.NotContains(t, logs, "Engine started")
}

func TestStartupStrictReturnsFailure(t *testing.T) {
	captureLogs(t)
	boom := errors.New("bind failed")
	e := newFakeEngine()
	e.serveErr = boom

	c := New(e, Config{Name: "grpc", Port: 50051, CheckInterval: 10 * time.Millisecond}, nil, WithStrictStartup())

	err := c.Startup()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineFailed)
	assert.ErrorIs(t, err, boom)

	var failed *EngineFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 50051, failed.Port)
	assert.Contains(t, err.Error(), "port 50051")
}

func TestStartupServePanics(t *testing.T) {
	captureLogs(t)
	e := newFakeEngine()
	e.panicWith = "nil map write"

	c := New(e, Config{Name: "framed", CheckInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, c.Startup())
	assert.True(t, c.Failed())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := c.Runner().Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map write")
}

func TestStartupServingWinsOverFailure(t *testing.T) {
	signal := NewFailureSignal()
	signal.Set()

	e := newFakeEngine()
	e.serving.Store(true)
	e.serveAfter = -1
	stopEngine(t, e)

	c := New(e, Config{Name: "framed"}, nil, WithFailureSignal(signal), WithStrictStartup())
	sleeps := countingSleep(c, nil)

	assert.NoError(t, c.Startup())
	assert.Zero(t, *sleeps)
}

func TestStartupTwice(t *testing.T) {
	e := newFakeEngine()
	stopEngine(t, e)

	c := New(e, Config{Name: "framed", CheckInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, c.Startup())
	assert.ErrorIs(t, c.Startup(), ErrAlreadyStarted)
	assert.EqualValues(t, 1, e.serveCalls.Load())
}

func TestShutdownAlreadyStopped(t *testing.T) {
	e := newFakeEngine()
	c := New(e, Config{Name: "framed"}, nil)
	sleeps := countingSleep(c, nil)

	require.NoError(t, c.Shutdown())
	assert.Zero(t, *sleeps)
	assert.EqualValues(t, 1, e.stopCalls.Load())
	assert.Equal(t, StateStopped, c.State())
}

func TestShutdownAfterFailedStartup(t *testing.T) {
	captureLogs(t)
	e := newFakeEngine()
	e.serveErr = errors.New("boom")

	c := New(e, Config{Name: "framed", CheckInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, c.Startup())

	sleeps := countingSleep(c, nil)
	require.NoError(t, c.Shutdown())
	assert.Zero(t, *sleeps)
}

func TestShutdownWaitsForStop(t *testing.T) {
	e := newFakeEngine()
	c := New(e, Config{Name: "framed", CheckInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, c.Startup())
	require.NoError(t, c.Shutdown())

	assert.True(t, e.IsStopped())
	assert.False(t, e.IsServing())
	assert.Equal(t, StateStopped, c.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Runner().Wait(ctx))
}

func TestShutdownTimeout(t *testing.T) {
	captureLogs(t)
	e := newFakeEngine()
	e.ignoreStop = true

	c := New(e, Config{
		Name:            "framed",
		CheckInterval:   10 * time.Millisecond,
		ShutdownTimeout: 3 * time.Second,
	}, nil)
	require.NoError(t, c.Startup())

	sleeps := countingSleep(c, nil)
	err := c.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShutdownTimeout)

	var timeoutErr *ShutdownTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3*time.Second, timeoutErr.Timeout)
	assert.Greater(t, timeoutErr.Waited, timeoutErr.Timeout)
	assert.Equal(t, 301, *sleeps)
	assert.Contains(t, err.Error(), "3s")
}

// Wall-clock scenarios from the polling contract.

func TestStartupTimingServingAfter250ms(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	e := newFakeEngine()
	e.serveAfter = 250 * time.Millisecond
	stopEngine(t, e)

	c := New(e, Config{
		Name:           "framed",
		CheckInterval:  100 * time.Millisecond,
		StartupTimeout: 500 * time.Millisecond,
	}, nil)

	start := time.Now()
	require.NoError(t, c.Startup())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestStartupTimingNeverServes(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	e := newFakeEngine()
	e.serveAfter = -1
	stopEngine(t, e)

	c := New(e, Config{
		Name:           "framed",
		CheckInterval:  100 * time.Millisecond,
		StartupTimeout: 300 * time.Millisecond,
	}, nil)

	start := time.Now()
	err := c.Startup()
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrStartupTimeout)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 700*time.Millisecond)
}

func TestStatsPassthrough(t *testing.T) {
	st := stats.New()
	c := New(newFakeEngine(), Config{}, st)
	assert.Same(t, st, c.Stats())

	assert.Nil(t, New(newFakeEngine(), Config{}, nil).Stats())
}

func TestConfigDefaults(t *testing.T) {
	c := New(newFakeEngine(), Config{}, nil)
	cfg := c.Config()

	assert.Equal(t, "engine", cfg.Name)
	assert.Equal(t, DefaultStartupTimeout, cfg.StartupTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval)
}

func TestMetricsRecorded(t *testing.T) {
	m := &recordingMetrics{}
	e := newFakeEngine()

	c := New(e, Config{Name: "framed", CheckInterval: 5 * time.Millisecond}, nil, WithMetrics(m))
	require.NoError(t, c.Startup())
	require.NoError(t, c.Shutdown())

	assert.Equal(t, []string{"serving"}, m.startups)
	assert.Equal(t, []string{"stopped"}, m.shutdowns)
	assert.Equal(t, []string{"serving", "stopped"}, m.states)
}

func TestStateBeforeStartup(t *testing.T) {
	c := New(newFakeEngine(), Config{}, nil)
	assert.Equal(t, StateNotServing, c.State())
}

func TestOutcomeLogsCarryDuration(t *testing.T) {
	buf := captureLogs(t)
	e := newFakeEngine()
	c := New(e, Config{Name: "framed", CheckInterval: 5 * time.Millisecond}, nil)

	require.NoError(t, c.Startup())
	require.NoError(t, c.Shutdown())

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Engine started") || strings.Contains(line, "Engine closed") {
			assert.Contains(t, line, "duration_ms=")
		}
		if strings.Contains(line, "Waiting for engine") {
			assert.NotContains(t, line, "duration_ms=")
		}
	}
	assert.Contains(t, buf.String(), "Engine started")
	assert.Contains(t, buf.String(), "Engine closed")
}
