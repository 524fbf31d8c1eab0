package encode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg constants for post-processing
const (
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
	FastStartFlag       = "+faststart"
	AudioCodec          = "aac"
	AudioBitrate        = "160k"
)

// Options select the post-processing work for one assembled file
type Options struct {
	// UnmuteAudio re-encodes the audio track to recover muted ranges
	UnmuteAudio bool

	// FastStart relocates the container index for streaming playback
	FastStart bool
}

// ProcessingError is a failed post-processing run. The partial output file
// is retained for user inspection rather than deleted.
type ProcessingError struct {
	Err    error
	Detail string
}

func (e *ProcessingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("encode: processing failed: %v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("encode: processing failed: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Processor drives the external media tooling for remux/unmute work
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a processor using the ffmpeg/ffprobe binaries on PATH
func NewProcessor() *Processor {
	return &Processor{ffmpegPath: FFmpegCommand, ffprobePath: FFprobeCommand}
}

// NewProcessorWithPaths creates a processor using explicit binary locations.
// Empty paths fall back to the binaries on PATH.
func NewProcessorWithPaths(ffmpegPath, ffprobePath string) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = FFmpegCommand
	}
	if ffprobePath == "" {
		ffprobePath = FFprobeCommand
	}
	return &Processor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ProbeDuration returns the media duration of a file in seconds
func (p *Processor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("encode: run ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("encode: parse duration: %w", err)
	}
	return duration, nil
}

// BuildArgs builds the ffmpeg command arguments for one run
func (p *Processor) BuildArgs(inputPath, outputPath string, opts Options) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "copy",
	}
	if opts.UnmuteAudio {
		args = append(args, "-c:a", AudioCodec, "-b:a", AudioBitrate)
	} else {
		args = append(args, "-c:a", "copy")
	}
	if opts.FastStart {
		args = append(args, "-movflags", FastStartFlag)
	}
	args = append(args,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	)
	return args
}

// Remux runs ffmpeg on the assembled file, reporting processed media time in
// seconds through onProgress. A failed run returns a ProcessingError; the
// partial output is left in place.
func (p *Processor) Remux(ctx context.Context, inputPath, outputPath string, opts Options, onProgress func(seconds float64)) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath, p.BuildArgs(inputPath, outputPath, opts)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ProcessingError{Err: fmt.Errorf("create stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &ProcessingError{Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	tail := monitorProgress(stderr, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProcessingError{Err: err, Detail: <-tail}
	}
	return nil
}

// monitorProgress scans ffmpeg progress output, forwarding out_time_us
// values as seconds. The last output lines are returned for error detail.
func monitorProgress(stderr io.ReadCloser, onProgress func(seconds float64)) <-chan string {
	tail := make(chan string, 1)
	go func() {
		defer stderr.Close()
		var lastLines []string
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			// Parse progress line: out_time_us=123456
			if strings.HasPrefix(line, ProgressTimePrefix) {
				timeStr := strings.TrimPrefix(line, ProgressTimePrefix)
				timeMicroseconds, err := strconv.ParseInt(timeStr, 10, 64)
				if err != nil {
					continue
				}
				if onProgress != nil {
					onProgress(float64(timeMicroseconds) / 1000000.0)
				}
				continue
			}

			if line != "" {
				lastLines = append(lastLines, line)
				if len(lastLines) > 5 {
					lastLines = lastLines[1:]
				}
			}
		}
		tail <- strings.Join(lastLines, "; ")
	}()
	return tail
}
