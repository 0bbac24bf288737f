package lifecycle

// Engine is the capability a Controller supervises.
//
// Implementations must be safe for concurrent use: Serve runs on the runner
// goroutine while the status methods are polled from the caller.
type Engine interface {
	// Serve runs the accept/dispatch loop and blocks until the engine stops.
	// A non-nil error (or a panic) marks the engine as failed.
	Serve() error

	// Stop requests termination. It must not block and must be idempotent.
	Stop()

	// IsServing reports whether the engine is accepting work.
	IsServing() bool

	// IsStopped reports whether the engine is fully stopped.
	IsStopped() bool
}
