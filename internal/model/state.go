package model

import "sync/atomic"

// TriStateValue is one of the three values a TriState can hold
type TriStateValue int32

const (
	// StateFalse means the flag is not set
	StateFalse TriStateValue = iota

	// StateProcessing means the flag was requested but has not yet been
	// honored at a safe checkpoint
	StateProcessing

	// StateTrue means the flag is fully set
	StateTrue
)

// TriState is a pause/terminate flag with an intermediate PROCESSING value.
// External goroutines request a transition; the task's own worker observes
// the request at its next checkpoint and completes it. All reads are
// non-blocking.
type TriState struct {
	v atomic.Int32
}

// Value returns the current state
func (s *TriState) Value() TriStateValue {
	return TriStateValue(s.v.Load())
}

// SetFalse resets the flag unconditionally
func (s *TriState) SetFalse() {
	s.v.Store(int32(StateFalse))
}

// SetProcessing marks the flag as requested
func (s *TriState) SetProcessing() {
	s.v.Store(int32(StateProcessing))
}

// SetTrue completes the transition
func (s *TriState) SetTrue() {
	s.v.Store(int32(StateTrue))
}

// RequestFromFalse moves FALSE to PROCESSING and reports whether it did.
// A flag already PROCESSING or TRUE is left untouched.
func (s *TriState) RequestFromFalse() bool {
	return s.v.CompareAndSwap(int32(StateFalse), int32(StateProcessing))
}

// ReleaseFromTrue moves TRUE back to FALSE and reports whether it did
func (s *TriState) ReleaseFromTrue() bool {
	return s.v.CompareAndSwap(int32(StateTrue), int32(StateFalse))
}

// IsFalse returns true if the flag is not set
func (s *TriState) IsFalse() bool {
	return s.Value() == StateFalse
}

// IsProcessing returns true if a transition was requested but not completed
func (s *TriState) IsProcessing() bool {
	return s.Value() == StateProcessing
}

// IsTrue returns true if the flag is fully set
func (s *TriState) IsTrue() bool {
	return s.Value() == StateTrue
}
