package framed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/rpcwarden/pkg/stats"
)

// HandlerFunc handles the body of one call and returns the reply body.
// A returned error is sent to the peer as StatusHandlerError.
type HandlerFunc func(ctx context.Context, body []byte) ([]byte, error)

// Mux routes calls to handlers by method name. Safe for concurrent use.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for method, replacing any previous handler.
func (m *Mux) Handle(method string, h HandlerFunc) {
	if method == "" || h == nil {
		panic("framed: Handle requires a method name and a handler")
	}
	m.mu.Lock()
	m.handlers[method] = h
	m.mu.Unlock()
}

// Lookup returns the handler for method.
func (m *Mux) Lookup(method string) (HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[method]
	return h, ok
}

// Methods returns the registered method names, sorted.
func (m *Mux) Methods() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Built-in method names.
const (
	MethodPing  = "ping"
	MethodEcho  = "echo"
	MethodStats = "stats"
)

// RegisterBuiltins adds ping, echo and stats. stats replies with the JSON
// encoding of st.Snapshot(); it reports an error when st is nil.
func RegisterBuiltins(m *Mux, st *stats.ServerStats) {
	m.Handle(MethodPing, func(context.Context, []byte) ([]byte, error) {
		return []byte("pong"), nil
	})
	m.Handle(MethodEcho, func(_ context.Context, body []byte) ([]byte, error) {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	})
	m.Handle(MethodStats, func(context.Context, []byte) ([]byte, error) {
		if st == nil {
			return nil, fmt.Errorf("stats not available")
		}
		return json.Marshal(st.Snapshot())
	})
}
