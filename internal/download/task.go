package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vodgrab/vodgrab/internal/catalog"
	"github.com/vodgrab/vodgrab/internal/encode"
	"github.com/vodgrab/vodgrab/internal/model"
	"github.com/vodgrab/vodgrab/internal/playback"
	"github.com/vodgrab/vodgrab/internal/segment"
)

// Default pipeline tuning
const (
	DefaultRetryBudget  = 3
	DefaultRetryBackoff = 2 * time.Second
	DefaultWaitingTime  = 15 * time.Second
)

// Outcome is how one admission of a task's worker ended
type Outcome int

const (
	// OutcomeDone means the task reached DONE and its slot is free for good
	OutcomeDone Outcome = iota

	// OutcomePaused means the worker honored a pause request; the task is
	// re-admitted through the scheduler's waiting queue on resume
	OutcomePaused

	// OutcomeWaiting means a live task is waiting for new segments; the
	// scheduler re-admits it after the recorded waiting time
	OutcomeWaiting
)

// Deps are the injected collaborators a task drives
type Deps struct {
	Resolver  Resolver
	Fetcher   Fetcher
	Processor Processor
	Events    *Publisher
}

// TaskConfig tunes one task's pipeline behavior
type TaskConfig struct {
	DownloadDir  string
	RetryBudget  int           // total fetch attempts per segment
	RetryBackoff time.Duration // base delay, doubled per attempt
	WaitingTime  time.Duration // live re-poll interval
}

func (c *TaskConfig) applyDefaults() {
	if c.RetryBudget <= 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.WaitingTime <= 0 {
		c.WaitingTime = DefaultWaitingTime
	}
}

// Task drives one content item end to end. All pipeline state below the
// deps is owned by the task's worker goroutine; external goroutines interact
// only through Status flags and Progress/snapshot reads.
type Task struct {
	ID         string
	Descriptor model.ContentDescriptor
	Setup      model.TaskSetup
	Status     *model.Status
	Progress   *model.Progress

	deps Deps
	cfg  TaskConfig

	enqueuedAt time.Time

	// worker-owned pipeline state
	access      *playback.Access
	segments    []segment.Segment
	nextSegment int
	trackDone   bool
	started     bool
	outputPath  string
}

// NewTask creates a task for a descriptor. The task is inert until the
// scheduler admits it.
func NewTask(descriptor model.ContentDescriptor, setup model.TaskSetup, deps Deps, cfg TaskConfig) *Task {
	cfg.applyDefaults()
	if deps.Events == nil {
		deps.Events = NewPublisher()
	}
	return &Task{
		ID:         uuid.New().String(),
		Descriptor: descriptor,
		Setup:      setup,
		Status:     model.NewStatus(),
		Progress:   model.NewProgress(),
		deps:       deps,
		cfg:        cfg,
	}
}

// run is one admission of the task's worker. It resumes from where the
// previous admission left off, so pause and live-wait cycles never lose
// progress.
func (t *Task) run(ctx context.Context) Outcome {
	if outcome, stop := t.checkpoint(); stop {
		return outcome
	}

	// PREPARING: resolve access and the manifest. Grants are single-use,
	// so every admission after a live wait re-resolves.
	if t.access == nil {
		t.setStage(model.StatusPreparing)
		if err := t.prepare(ctx); err != nil {
			t.Status.RaiseError(err)
			return t.finalize()
		}
	}
	if outcome, stop := t.checkpoint(); stop {
		return outcome
	}

	if !t.Status.IsDownloadSkipped() {
		if outcome, stop := t.downloadSegments(ctx); stop {
			return outcome
		}
	}

	// Live tracks that are not finished go back to WAITING for new
	// segments; the scheduler re-admits after the poll interval.
	if t.Descriptor.Kind.IsLive() && !t.trackDone {
		t.Status.SetWaitingTime(t.cfg.WaitingTime)
		t.setStage(model.StatusWaiting)
		t.access = nil
		return OutcomeWaiting
	}

	if outcome, stop := t.checkpoint(); stop {
		return outcome
	}
	if err := t.assembleAndProcess(ctx); err != nil {
		t.Status.RaiseError(err)
	}
	return t.finalize()
}

// checkpoint is the cooperative cancellation point: called at segment
// boundaries and before stage transitions. It never blocks.
func (t *Task) checkpoint() (Outcome, bool) {
	if !t.Status.Terminate.IsFalse() {
		return t.finalize(), true
	}
	if t.Status.Pause.IsProcessing() {
		t.Status.Pause.SetTrue()
		t.publishStatus()
		return OutcomePaused, true
	}
	return 0, false
}

// prepare resolves playback access and applies the current manifest
func (t *Task) prepare(ctx context.Context) error {
	access, err := t.deps.Resolver.Resolve(ctx, t.Descriptor)
	if err != nil {
		return err
	}
	t.access = access

	if err := os.MkdirAll(t.workDir(), 0755); err != nil {
		return fmt.Errorf("download: create work dir: %w", err)
	}

	if t.Descriptor.Kind == model.KindClip {
		// Clips are a single direct file, no manifest
		if len(t.segments) == 0 {
			t.segments = []segment.Segment{{Index: 0, URL: access.URL}}
			t.Progress.SetTotalFiles(1)
		}
		t.trackDone = true
		return nil
	}

	manifest, err := t.deps.Fetcher.FetchManifest(ctx, access.URL)
	if err != nil {
		return err
	}
	t.applyManifest(manifest)
	return nil
}

// applyManifest appends segments the task has not seen yet. Segments are
// always applied in manifest order; a shrunken manifest is ignored.
func (t *Task) applyManifest(manifest *segment.Manifest) {
	hadAllKnown := t.started && t.nextSegment >= len(t.segments)
	for _, seg := range manifest.Segments {
		if seg.Index >= len(t.segments) {
			t.segments = append(t.segments, seg)
		}
	}
	t.Progress.SetTotalFiles(len(t.segments))
	t.trackDone = !manifest.HasMore

	if hadAllKnown && t.nextSegment < len(t.segments) && t.Setup.UpdateTrack {
		t.Status.SetUpdateFound()
	}
	t.started = true
}

// downloadSegments fetches the remaining segments in order, checking the
// pause/terminate flags at every segment boundary
func (t *Task) downloadSegments(ctx context.Context) (Outcome, bool) {
	stage := model.StatusDownloading
	if t.Status.IsUpdateFound() {
		stage = model.StatusUpdating
	}
	t.setStage(stage)

	for t.nextSegment < len(t.segments) {
		if outcome, stop := t.checkpoint(); stop {
			return outcome, true
		}

		seg := t.segments[t.nextSegment]
		written, err := t.fetchSegmentWithRetry(ctx, seg)
		if err != nil {
			t.Status.RaiseError(err)
			return t.finalize(), true
		}

		t.Progress.AddBytes(written)
		t.Progress.AdvanceFile()
		t.nextSegment++
		t.publishProgress()
	}
	return 0, false
}

// fetchSegmentWithRetry attempts one segment with bounded exponential
// backoff. Only transient network errors are retried; the budget counts
// total attempts.
func (t *Task) fetchSegmentWithRetry(ctx context.Context, seg segment.Segment) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= t.cfg.RetryBudget; attempt++ {
		if attempt > 1 {
			delay := t.cfg.RetryBackoff << (attempt - 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, &catalog.NetworkError{Err: ctx.Err()}
			}
			log.Printf("Retrying segment %d for task %s, attempt %d", seg.Index, t.ID, attempt)
		}

		written, err := t.deps.Fetcher.FetchSegment(ctx, seg, t.segmentPath(seg.Index))
		if err == nil {
			return written, nil
		}
		lastErr = err
		if !catalog.IsRetryable(err) {
			return 0, err
		}
		if !t.Status.Terminate.IsFalse() {
			return 0, lastErr
		}
	}
	return 0, lastErr
}

// assembleAndProcess concatenates the fetched segments and runs the
// post-processing stage when one is needed
func (t *Task) assembleAndProcess(ctx context.Context) error {
	if t.nextSegment == 0 {
		// Metadata-only or empty track: nothing to assemble
		return nil
	}

	needsProcessing := t.deps.Processor != nil && (t.Descriptor.Kind.IsVideo() || t.Setup.UnmuteVideo)

	assembled := filepath.Join(t.workDir(), "assembled.ts")
	if err := t.assembleSegments(assembled); err != nil {
		return err
	}

	if !needsProcessing {
		t.outputPath = t.finalPath(".ts")
		if t.Descriptor.Kind == model.KindClip {
			t.outputPath = t.finalPath(".mp4")
		}
		if err := os.Rename(assembled, t.outputPath); err != nil {
			return fmt.Errorf("download: deliver output: %w", err)
		}
		os.RemoveAll(t.workDir())
		return nil
	}

	t.setStage(model.StatusEncoding)

	if seconds, err := t.deps.Processor.ProbeDuration(ctx, assembled); err == nil {
		t.Progress.SetTotalSeconds(seconds)
	} else {
		t.Progress.SetTotalSeconds(t.manifestDuration())
	}

	t.outputPath = t.finalPath(".mp4")
	opts := encode.Options{UnmuteAudio: t.Setup.UnmuteVideo, FastStart: true}
	err := t.deps.Processor.Remux(ctx, assembled, t.outputPath, opts, func(seconds float64) {
		t.Progress.SetSeconds(seconds)
		t.publishProgress()
	})
	if err != nil {
		return err
	}
	os.RemoveAll(t.workDir())
	return nil
}

// assembleSegments concatenates completed segment files in index order
func (t *Task) assembleSegments(destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("download: create assembled file: %w", err)
	}
	defer out.Close()

	for i := 0; i < t.nextSegment; i++ {
		part, err := os.Open(t.segmentPath(i))
		if err != nil {
			return fmt.Errorf("download: open segment %d: %w", i, err)
		}
		_, err = io.Copy(out, part)
		part.Close()
		if err != nil {
			return fmt.Errorf("download: append segment %d: %w", i, err)
		}
	}
	return nil
}

// finalize is the single terminal transition: cleanup, DONE, completion
// notification. Safe to call from the scheduler when no worker is active.
func (t *Task) finalize() Outcome {
	if t.Status.Terminate.IsTrue() && t.Status.Is(model.StatusDone) {
		return OutcomeDone
	}

	err := t.Status.Err()
	if err == nil {
		// Cancelled by the user: partial segment data is discarded.
		// Failed tasks keep their partials for inspection.
		if !t.Status.Is(model.StatusDone) && t.outputPath == "" {
			os.RemoveAll(t.workDir())
		}
	}

	t.Status.SetStatus(model.StatusDone)
	t.Status.Terminate.SetTrue()

	if err != nil {
		log.Printf("Task %s finished with error: %v", t.ID, err)
		t.deps.Events.publish(Event{Type: EventFinishedWithError, TaskID: t.ID, Status: model.StatusDone, Progress: t.Progress.Snapshot(), Err: err})
	} else {
		t.deps.Events.publish(Event{Type: EventFinished, TaskID: t.ID, Status: model.StatusDone, Progress: t.Progress.Snapshot()})
	}
	return OutcomeDone
}

func (t *Task) manifestDuration() float64 {
	var total float64
	for _, seg := range t.segments {
		total += seg.Duration
	}
	return total
}

func (t *Task) setStage(status model.TaskStatus) {
	t.Status.SetStatus(status)
	t.publishStatus()
}

func (t *Task) publishStatus() {
	t.deps.Events.publish(Event{Type: EventStatusChanged, TaskID: t.ID, Status: t.Status.Current(), Progress: t.Progress.Snapshot()})
}

func (t *Task) publishProgress() {
	t.deps.Events.publish(Event{Type: EventProgressChanged, TaskID: t.ID, Status: t.Status.Current(), Progress: t.Progress.Snapshot()})
}

// workDir is the per-task staging directory for segment files
func (t *Task) workDir() string {
	return filepath.Join(t.cfg.DownloadDir, "."+t.ID)
}

func (t *Task) segmentPath(index int) string {
	return filepath.Join(t.workDir(), fmt.Sprintf("seg%05d.ts", index))
}

// OutputPath returns the delivered file path, empty until the task is done
func (t *Task) OutputPath() string {
	return t.outputPath
}

func (t *Task) finalPath(ext string) string {
	name := t.Descriptor.Title
	if name == "" {
		name = t.Descriptor.ID
	}
	return filepath.Join(t.cfg.DownloadDir, sanitizeFileName(name)+ext)
}

// sanitizeFileName strips path separators and control characters from a
// title so it is safe as a file name
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "download"
	}
	return cleaned
}
