// Package lifecycle supervises the startup and shutdown of a single
// request-serving engine.
//
// An Engine exposes a blocking Serve loop plus non-blocking status queries.
// A Controller launches Serve on a background goroutine through a Runner and
// converts the engine's asynchronous state into two synchronous calls:
//
//   - Startup blocks until the engine reports serving, the runner reports a
//     failure, or the startup timeout elapses.
//   - Shutdown requests a stop and blocks until the engine is stopped and no
//     longer serving, or the shutdown timeout elapses.
//
// Both calls poll at a fixed check interval. Polling cannot be cancelled; a
// call runs until its condition holds or its deadline passes.
//
// A failure while starting is not returned from Startup by default. It is
// logged, recorded in the shared FailureSignal and kept on the Runner, and
// callers inspect Controller.Failed afterwards. WithStrictStartup turns that
// case into an *EngineFailedError instead.
//
// Example:
//
//	ctrl := lifecycle.New(engine, lifecycle.Config{Name: "framed", Port: 9090}, stats.New())
//	if err := ctrl.Startup(); err != nil {
//		return err // *StartupTimeoutError
//	}
//	if ctrl.Failed() {
//		return ctrl.Runner().Err()
//	}
//	defer ctrl.Shutdown()
package lifecycle
