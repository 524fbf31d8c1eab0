package model

import (
	"sync"
	"time"
)

// TaskStatus represents the stage a download task is in
type TaskStatus string

const (
	// StatusPreparing means playback access and the initial manifest are
	// being resolved
	StatusPreparing TaskStatus = "preparing"

	// StatusDownloading means segments are being fetched
	StatusDownloading TaskStatus = "downloading"

	// StatusWaiting means the task is queued for a slot, or a live task is
	// waiting for new segments to appear
	StatusWaiting TaskStatus = "waiting"

	// StatusUpdating means newly available live segments are being appended
	StatusUpdating TaskStatus = "updating"

	// StatusEncoding means the assembled file is being post-processed
	StatusEncoding TaskStatus = "encoding"

	// StatusDone is terminal, reached via completion or termination
	StatusDone TaskStatus = "done"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// OccupiesSlot returns true if the stage counts against the scheduler's
// concurrency limit
func (ts TaskStatus) OccupiesSlot() bool {
	return ts == StatusPreparing || ts == StatusDownloading || ts == StatusUpdating || ts == StatusEncoding
}

// Status tracks a task's stage, auxiliary flags, and the pause/terminate
// states. The stage and flags are written only by the task's own worker; the
// pause/terminate flags are the only fields other goroutines may request
// transitions on. Reads never block.
type Status struct {
	Pause     TriState
	Terminate TriState

	mu           sync.Mutex
	status       TaskStatus
	waitingTime  time.Duration
	updateFound  bool
	skipWaiting  bool
	skipDownload bool
	err          error
}

// NewStatus creates a status in the initial PREPARING stage
func NewStatus() *Status {
	return &Status{status: StatusPreparing}
}

// Current returns the current stage
func (s *Status) Current() TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus moves the task to the given stage
func (s *Status) SetStatus(status TaskStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Is reports whether the task is currently in the given stage
func (s *Status) Is(status TaskStatus) bool {
	return s.Current() == status
}

// SetWaitingTime records the poll interval for a live task in WAITING
func (s *Status) SetWaitingTime(d time.Duration) {
	s.mu.Lock()
	s.waitingTime = d
	s.mu.Unlock()
}

// WaitingTime returns the recorded poll interval
func (s *Status) WaitingTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingTime
}

// SetUpdateFound marks that new live segments appeared for a finished track
func (s *Status) SetUpdateFound() {
	s.mu.Lock()
	s.updateFound = true
	s.mu.Unlock()
}

// IsUpdateFound reports whether new live segments were detected
func (s *Status) IsUpdateFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateFound
}

// SetSkipWaiting controls whether the live poll interval is skipped
func (s *Status) SetSkipWaiting(skip bool) {
	s.mu.Lock()
	s.skipWaiting = skip
	s.mu.Unlock()
}

// IsWaitingSkipped reports whether the live poll interval is skipped
func (s *Status) IsWaitingSkipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipWaiting
}

// SetDownloadSkip marks the task as metadata-only: segment fetching is
// bypassed entirely
func (s *Status) SetDownloadSkip() {
	s.mu.Lock()
	s.skipDownload = true
	s.mu.Unlock()
}

// IsDownloadSkipped reports whether segment fetching is bypassed
func (s *Status) IsDownloadSkipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipDownload
}

// RaiseError records a fatal error and requests cooperative termination.
// The task must still unwind cleanly before it reaches DONE; this call does
// not abort anything by itself. The first error wins.
func (s *Status) RaiseError(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if !s.Terminate.IsTrue() {
		s.Terminate.SetProcessing()
	}
}

// Err returns the recorded terminal error, if any
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RequestPause asks the task to pause at its next safe checkpoint.
// Returns false if a pause is already requested or active.
func (s *Status) RequestPause() bool {
	return s.Pause.RequestFromFalse()
}

// ReleasePause reverses a completed pause. Returns false unless the task is
// fully paused. The caller must re-admit the task through the scheduler's
// waiting queue rather than resume it in place.
func (s *Status) ReleasePause() bool {
	return s.Pause.ReleaseFromTrue()
}

// RequestTerminate asks the task to shut down at its next checkpoint.
// Termination can be requested from any state and cannot be reversed.
func (s *Status) RequestTerminate() {
	if !s.Terminate.IsTrue() {
		s.Terminate.SetProcessing()
	}
}
