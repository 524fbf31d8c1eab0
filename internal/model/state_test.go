package model

import (
	"errors"
	"testing"
	"time"
)

func TestTriState_Transitions(t *testing.T) {
	var s TriState

	if !s.IsFalse() {
		t.Error("Expected initial state to be FALSE")
	}

	if !s.RequestFromFalse() {
		t.Error("Expected RequestFromFalse to succeed from FALSE")
	}
	if !s.IsProcessing() {
		t.Error("Expected state to be PROCESSING after request")
	}

	// A second request must not succeed
	if s.RequestFromFalse() {
		t.Error("Expected RequestFromFalse to fail from PROCESSING")
	}

	s.SetTrue()
	if !s.IsTrue() {
		t.Error("Expected state to be TRUE")
	}

	if !s.ReleaseFromTrue() {
		t.Error("Expected ReleaseFromTrue to succeed from TRUE")
	}
	if !s.IsFalse() {
		t.Error("Expected state to be FALSE after release")
	}

	if s.ReleaseFromTrue() {
		t.Error("Expected ReleaseFromTrue to fail from FALSE")
	}
}

func TestStatus_RequestPause(t *testing.T) {
	s := NewStatus()

	if !s.RequestPause() {
		t.Error("Expected pause request to succeed")
	}
	if !s.Pause.IsProcessing() {
		t.Error("Expected pause state PROCESSING after request")
	}
	if s.RequestPause() {
		t.Error("Expected duplicate pause request to fail")
	}

	// Worker honors the request at its checkpoint
	s.Pause.SetTrue()
	if !s.ReleasePause() {
		t.Error("Expected resume to succeed from fully paused state")
	}
	if !s.Pause.IsFalse() {
		t.Error("Expected pause state FALSE after resume")
	}
}

func TestStatus_RaiseError(t *testing.T) {
	s := NewStatus()
	first := errors.New("network failure")
	second := errors.New("later failure")

	s.RaiseError(first)

	if !s.Terminate.IsProcessing() {
		t.Error("Expected error to request cooperative termination")
	}
	if s.Err() != first {
		t.Errorf("Expected recorded error %v, got %v", first, s.Err())
	}

	// The first error wins
	s.RaiseError(second)
	if s.Err() != first {
		t.Errorf("Expected first error to be kept, got %v", s.Err())
	}
}

func TestStatus_TerminateWhilePaused(t *testing.T) {
	s := NewStatus()

	s.RequestPause()
	s.Pause.SetTrue()

	// A terminate requested while paused must still be honored
	s.RequestTerminate()
	if !s.Terminate.IsProcessing() {
		t.Error("Expected terminate request while paused to be recorded")
	}

	s.Terminate.SetTrue()
	s.RequestTerminate() // no-op once terminal
	if !s.Terminate.IsTrue() {
		t.Error("Expected terminate to remain TRUE")
	}
}

func TestStatus_StageAndFlags(t *testing.T) {
	s := NewStatus()

	if !s.Is(StatusPreparing) {
		t.Errorf("Expected initial status preparing, got %s", s.Current())
	}

	s.SetStatus(StatusDownloading)
	if !s.Is(StatusDownloading) {
		t.Errorf("Expected status downloading, got %s", s.Current())
	}

	s.SetWaitingTime(20 * time.Second)
	if s.WaitingTime() != 20*time.Second {
		t.Errorf("Expected waiting time 20s, got %v", s.WaitingTime())
	}

	s.SetUpdateFound()
	if !s.IsUpdateFound() {
		t.Error("Expected update found flag to be set")
	}

	s.SetSkipWaiting(true)
	if !s.IsWaitingSkipped() {
		t.Error("Expected skip waiting flag to be set")
	}

	s.SetDownloadSkip()
	if !s.IsDownloadSkipped() {
		t.Error("Expected skip download flag to be set")
	}
}

func TestTaskStatus_OccupiesSlot(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{StatusPreparing, true},
		{StatusDownloading, true},
		{StatusWaiting, false},
		{StatusUpdating, true},
		{StatusEncoding, true},
		{StatusDone, false},
	}

	for _, test := range tests {
		result := test.status.OccupiesSlot()
		if result != test.expected {
			t.Errorf("TaskStatus(%s).OccupiesSlot() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestNewTaskSetup(t *testing.T) {
	video := ContentDescriptor{Kind: KindVideo, ID: "123"}
	setup := NewTaskSetup(video, true, true, 3)

	if !setup.UnmuteVideo || !setup.UpdateTrack {
		t.Error("Expected video setup to carry unmute and update track options")
	}
	if setup.Priority != 6 {
		t.Errorf("Expected priority 6, got %d", setup.Priority)
	}

	clip := ContentDescriptor{Kind: KindClip, ID: "slug"}
	clipSetup := NewTaskSetup(clip, true, true, 1)

	if clipSetup.UnmuteVideo || clipSetup.UpdateTrack {
		t.Error("Expected clip setup to ignore video-only options")
	}
}
