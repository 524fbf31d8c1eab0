package encode

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildArgs_Remux(t *testing.T) {
	processor := NewProcessor()
	args := processor.BuildArgs("/input.ts", "/output.mp4", Options{})

	expectedArgs := []string{
		"-y",
		"-i", "/input.ts",
		"-c:v", "copy",
		"-c:a", "copy",
		"-progress", "pipe:2",
		"-nostats",
		"/output.mp4",
	}

	if len(args) != len(expectedArgs) {
		t.Fatalf("Expected %d args, got %d: %v", len(expectedArgs), len(args), args)
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Errorf("Arg %d: expected %s, got %s", i, expected, args[i])
		}
	}
}

func TestBuildArgs_UnmuteAndFastStart(t *testing.T) {
	processor := NewProcessor()
	args := processor.BuildArgs("/input.ts", "/output.mp4", Options{UnmuteAudio: true, FastStart: true})
	joined := strings.Join(args, " ")

	for _, want := range []string{"-c:a aac", "-b:a " + AudioBitrate, "-movflags " + FastStartFlag} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected args to contain %q, got %v", want, args)
		}
	}
	if strings.Contains(joined, "-c:a copy") {
		t.Errorf("Expected audio copy to be replaced when unmuting, got %v", args)
	}
}

func TestProcessingError_Message(t *testing.T) {
	err := &ProcessingError{Err: errors.New("exit status 1"), Detail: "muxer said no"}
	msg := err.Error()

	if !strings.Contains(msg, "processing failed") || !strings.Contains(msg, "muxer said no") {
		t.Errorf("Unexpected error message: %s", msg)
	}
}
