package lifecycle

import "sync/atomic"

// FailureSignal is a write-once flag shared between a Runner and the
// Controller polling it. Once set it stays set.
type FailureSignal struct {
	failed atomic.Bool
}

// NewFailureSignal returns an unset signal.
func NewFailureSignal() *FailureSignal {
	return &FailureSignal{}
}

// Set marks the signal. It reports true only for the call that flipped it.
func (s *FailureSignal) Set() bool {
	return s.failed.CompareAndSwap(false, true)
}

// IsSet reports whether a failure has been recorded.
func (s *FailureSignal) IsSet() bool {
	return s.failed.Load()
}
