// Package stats holds the in-process statistics sink shared by an engine and
// its lifecycle controller.
//
// ServerStats is safe for concurrent use. Engines record into it from their
// connection goroutines; the controller only hands it back to callers.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ServerStats accumulates request and connection counters for one engine.
type ServerStats struct {
	started time.Time

	requests atomic.Uint64
	errors   atomic.Uint64
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64

	accepted    atomic.Uint64
	closed      atomic.Uint64
	forceClosed atomic.Uint64
	active      atomic.Int64

	mu      sync.RWMutex
	methods map[string]*methodStats
}

type methodStats struct {
	calls   atomic.Uint64
	errors  atomic.Uint64
	totalNs atomic.Int64
	maxNs   atomic.Int64
}

// New creates an empty ServerStats. Uptime is measured from this call.
func New() *ServerStats {
	return &ServerStats{
		started: time.Now(),
		methods: make(map[string]*methodStats),
	}
}

// RecordRequest records one completed request for method.
func (s *ServerStats) RecordRequest(method string, d time.Duration, bytesIn, bytesOut int, failed bool) {
	s.requests.Add(1)
	s.bytesIn.Add(uint64(max(bytesIn, 0)))
	s.bytesOut.Add(uint64(max(bytesOut, 0)))
	if failed {
		s.errors.Add(1)
	}

	m := s.method(method)
	m.calls.Add(1)
	if failed {
		m.errors.Add(1)
	}
	ns := d.Nanoseconds()
	m.totalNs.Add(ns)
	for {
		cur := m.maxNs.Load()
		if ns <= cur || m.maxNs.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (s *ServerStats) method(name string) *methodStats {
	s.mu.RLock()
	m, ok := s.methods[name]
	s.mu.RUnlock()
	if ok {
		return m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok = s.methods[name]; !ok {
		m = &methodStats{}
		s.methods[name] = m
	}
	return m
}

// RecordConnectionAccepted counts a newly accepted connection.
func (s *ServerStats) RecordConnectionAccepted() {
	s.accepted.Add(1)
}

// RecordConnectionClosed counts a connection that closed normally.
func (s *ServerStats) RecordConnectionClosed() {
	s.closed.Add(1)
}

// RecordConnectionForceClosed counts a connection closed after the drain timeout.
func (s *ServerStats) RecordConnectionForceClosed() {
	s.forceClosed.Add(1)
}

// SetActiveConnections sets the current connection gauge.
func (s *ServerStats) SetActiveConnections(n int32) {
	s.active.Store(int64(n))
}

// Requests returns the total number of requests recorded.
func (s *ServerStats) Requests() uint64 { return s.requests.Load() }

// Errors returns the total number of failed requests recorded.
func (s *ServerStats) Errors() uint64 { return s.errors.Load() }

// ActiveConnections returns the last reported connection count.
func (s *ServerStats) ActiveConnections() int64 { return s.active.Load() }

// Uptime returns the time elapsed since the stats were created.
func (s *ServerStats) Uptime() time.Duration { return time.Since(s.started) }

// MethodSnapshot is a point-in-time view of one method's counters.
type MethodSnapshot struct {
	Method    string  `json:"method" yaml:"method"`
	Calls     uint64  `json:"calls" yaml:"calls"`
	Errors    uint64  `json:"errors" yaml:"errors"`
	AvgMillis float64 `json:"avg_ms" yaml:"avg_ms"`
	MaxMillis float64 `json:"max_ms" yaml:"max_ms"`
}

// Snapshot is a point-in-time copy of ServerStats suitable for encoding.
type Snapshot struct {
	StartedAt         time.Time        `json:"started_at" yaml:"started_at"`
	UptimeSeconds     float64          `json:"uptime_seconds" yaml:"uptime_seconds"`
	Requests          uint64           `json:"requests" yaml:"requests"`
	Errors            uint64           `json:"errors" yaml:"errors"`
	BytesIn           uint64           `json:"bytes_in" yaml:"bytes_in"`
	BytesOut          uint64           `json:"bytes_out" yaml:"bytes_out"`
	ConnsAccepted     uint64           `json:"connections_accepted" yaml:"connections_accepted"`
	ConnsClosed       uint64           `json:"connections_closed" yaml:"connections_closed"`
	ConnsForceClosed  uint64           `json:"connections_force_closed" yaml:"connections_force_closed"`
	ActiveConnections int64            `json:"active_connections" yaml:"active_connections"`
	Methods           []MethodSnapshot `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Snapshot returns a consistent-enough copy of the counters, with methods
// sorted by name. Individual counters are read atomically but not as a group.
func (s *ServerStats) Snapshot() Snapshot {
	snap := Snapshot{
		StartedAt:         s.started,
		UptimeSeconds:     s.Uptime().Seconds(),
		Requests:          s.requests.Load(),
		Errors:            s.errors.Load(),
		BytesIn:           s.bytesIn.Load(),
		BytesOut:          s.bytesOut.Load(),
		ConnsAccepted:     s.accepted.Load(),
		ConnsClosed:       s.closed.Load(),
		ConnsForceClosed:  s.forceClosed.Load(),
		ActiveConnections: s.active.Load(),
	}

	s.mu.RLock()
	for name, m := range s.methods {
		calls := m.calls.Load()
		ms := MethodSnapshot{
			Method:    name,
			Calls:     calls,
			Errors:    m.errors.Load(),
			MaxMillis: float64(m.maxNs.Load()) / float64(time.Millisecond),
		}
		if calls > 0 {
			ms.AvgMillis = float64(m.totalNs.Load()) / float64(calls) / float64(time.Millisecond)
		}
		snap.Methods = append(snap.Methods, ms)
	}
	s.mu.RUnlock()

	sort.Slice(snap.Methods, func(i, j int) bool {
		return snap.Methods[i].Method < snap.Methods[j].Method
	})
	return snap
}
