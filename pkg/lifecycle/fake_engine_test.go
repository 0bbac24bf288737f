package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeEngine is a controllable Engine. By default it becomes serving as
// soon as Serve is entered and stops when Stop is called.
type fakeEngine struct {
	serving    atomic.Bool
	stopped    atomic.Bool
	serveCalls atomic.Int32
	stopCalls  atomic.Int32

	// serveAfter delays serving; a negative value never serves on its own.
	serveAfter time.Duration
	serveErr   error
	panicWith  any
	// ignoreStop leaves the engine reporting not-stopped after Stop.
	ignoreStop bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newFakeEngine() *fakeEngine {
	e := &fakeEngine{stopCh: make(chan struct{})}
	e.stopped.Store(true)
	return e
}

func (e *fakeEngine) Serve() error {
	e.serveCalls.Add(1)
	e.stopped.Store(false)

	if e.panicWith != nil {
		e.stopped.Store(true)
		panic(e.panicWith)
	}
	if e.serveErr != nil {
		e.stopped.Store(true)
		return e.serveErr
	}

	if e.serveAfter >= 0 {
		select {
		case <-time.After(e.serveAfter):
			e.serving.Store(true)
		case <-e.stopCh:
		}
	}

	<-e.stopCh
	e.serving.Store(false)
	if !e.ignoreStop {
		e.stopped.Store(true)
	}
	return nil
}

func (e *fakeEngine) Stop() {
	e.stopCalls.Add(1)
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *fakeEngine) IsServing() bool { return e.serving.Load() }
func (e *fakeEngine) IsStopped() bool { return e.stopped.Load() }

// recordingMetrics captures LifecycleMetrics calls.
type recordingMetrics struct {
	mu        sync.Mutex
	startups  []string
	shutdowns []string
	states    []string
}

func (m *recordingMetrics) RecordStartup(_, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startups = append(m.startups, outcome)
}

func (m *recordingMetrics) RecordShutdown(_, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdowns = append(m.shutdowns, outcome)
}

func (m *recordingMetrics) SetState(_, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}
