package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStartupTimeout is wrapped by *StartupTimeoutError.
	ErrStartupTimeout = errors.New("startup timeout")

	// ErrShutdownTimeout is wrapped by *ShutdownTimeoutError.
	ErrShutdownTimeout = errors.New("shutdown timeout")

	// ErrEngineFailed is wrapped by *EngineFailedError.
	ErrEngineFailed = errors.New("engine failed")

	// ErrAlreadyStarted is returned by a second call to Startup.
	ErrAlreadyStarted = errors.New("engine already started")
)

// StartupTimeoutError is returned when an engine neither serves nor fails
// within the startup timeout.
type StartupTimeoutError struct {
	Engine  string
	Timeout time.Duration
	Waited  time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("failed to start %s within timeout %s (waited %s)", e.Engine, e.Timeout, e.Waited)
}

func (e *StartupTimeoutError) Unwrap() error {
	return ErrStartupTimeout
}

// ShutdownTimeoutError is returned when an engine is still serving, or not
// yet stopped, once the shutdown timeout has elapsed.
type ShutdownTimeoutError struct {
	Engine  string
	Timeout time.Duration
	Waited  time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("failed to stop %s within timeout %s (waited %s)", e.Engine, e.Timeout, e.Waited)
}

func (e *ShutdownTimeoutError) Unwrap() error {
	return ErrShutdownTimeout
}

// EngineFailedError reports that Serve failed before the engine was serving.
// Startup only returns it when the controller was built WithStrictStartup.
type EngineFailedError struct {
	Engine string
	Port   int
	Cause  error
}

func (e *EngineFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s failed to start on port %d", e.Engine, e.Port)
	}
	return fmt.Sprintf("%s failed to start on port %d: %v", e.Engine, e.Port, e.Cause)
}

// Unwrap exposes both ErrEngineFailed and the serve error to errors.Is/As.
func (e *EngineFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrEngineFailed}
	}
	return []error{ErrEngineFailed, e.Cause}
}
