package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vodgrab/vodgrab/internal/catalog"
	"github.com/vodgrab/vodgrab/internal/encode"
	"github.com/vodgrab/vodgrab/internal/model"
	"github.com/vodgrab/vodgrab/internal/playback"
	"github.com/vodgrab/vodgrab/internal/segment"
)

type fakeResolver struct {
	access *playback.Access
	err    error
	calls  int
}

func (r *fakeResolver) Resolve(ctx context.Context, descriptor model.ContentDescriptor) (*playback.Access, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.access, nil
}

type fakeFetcher struct {
	mu sync.Mutex

	// manifests are returned in order, the last one repeating
	manifests     []*segment.Manifest
	manifestCalls int

	segmentErr   error
	failIndex    int // segment index that returns segmentErr, -1 for none
	failuresLeft int // how many times failIndex fails before succeeding

	fetchCalls int
	onFetch    func(index int) // runs before each segment fetch
}

func newFakeFetcher(manifests ...*segment.Manifest) *fakeFetcher {
	return &fakeFetcher{manifests: manifests, failIndex: -1}
}

func (f *fakeFetcher) FetchManifest(ctx context.Context, playlistURL string) (*segment.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.manifestCalls
	if i >= len(f.manifests) {
		i = len(f.manifests) - 1
	}
	f.manifestCalls++
	return f.manifests[i], nil
}

func (f *fakeFetcher) FetchSegment(ctx context.Context, seg segment.Segment, destPath string) (int64, error) {
	f.mu.Lock()
	f.fetchCalls++
	onFetch := f.onFetch
	fail := seg.Index == f.failIndex && f.failuresLeft != 0
	if fail && f.failuresLeft > 0 {
		f.failuresLeft--
	}
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(seg.Index)
	}
	if fail {
		return 0, f.segmentErr
	}
	data := []byte(fmt.Sprintf("segment-%d;", seg.Index))
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type fakeProcessor struct {
	probeSeconds float64
	remuxErr     error
	remuxCalls   int
	lastOpts     encode.Options
}

func (p *fakeProcessor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	return p.probeSeconds, nil
}

func (p *fakeProcessor) Remux(ctx context.Context, inputPath, outputPath string, opts encode.Options, onProgress func(seconds float64)) error {
	p.remuxCalls++
	p.lastOpts = opts
	if p.remuxErr != nil {
		return p.remuxErr
	}
	if onProgress != nil {
		onProgress(p.probeSeconds)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

func testManifest(count int, hasMore bool) *segment.Manifest {
	m := &segment.Manifest{HasMore: hasMore}
	for i := 0; i < count; i++ {
		m.Segments = append(m.Segments, segment.Segment{
			Index:    i,
			URL:      fmt.Sprintf("http://cdn.example/seg%d.ts", i),
			Duration: 2.0,
		})
	}
	return m
}

func newTestTask(t *testing.T, descriptor model.ContentDescriptor, setup model.TaskSetup, deps Deps) *Task {
	t.Helper()
	if deps.Resolver == nil {
		deps.Resolver = &fakeResolver{access: &playback.Access{URL: "http://cdn.example/index.m3u8"}}
	}
	cfg := TaskConfig{
		DownloadDir:  t.TempDir(),
		RetryBudget:  3,
		RetryBackoff: time.Millisecond,
		WaitingTime:  time.Millisecond,
	}
	return NewTask(descriptor, setup, deps, cfg)
}

func TestTaskRunVideoToCompletion(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(3, false))
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123", Title: "stream vod"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)

	outcome := task.run(context.Background())

	if outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if got := task.Status.Current(); got != model.StatusDone {
		t.Errorf("Expected status %q, got %q", model.StatusDone, got)
	}
	if !task.Status.Terminate.IsTrue() {
		t.Error("Expected terminate state TRUE after completion")
	}
	if task.Status.Err() != nil {
		t.Errorf("Unexpected task error: %v", task.Status.Err())
	}

	data, err := os.ReadFile(task.OutputPath())
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	want := "segment-0;segment-1;segment-2;"
	if string(data) != want {
		t.Errorf("Expected output %q, got %q", want, string(data))
	}
	if _, err := os.Stat(task.workDir()); !os.IsNotExist(err) {
		t.Error("Expected work dir to be removed after delivery")
	}

	snap := task.Progress.Snapshot()
	if snap.File != 3 || snap.TotalFiles != 3 {
		t.Errorf("Expected 3/3 files, got %d/%d", snap.File, snap.TotalFiles)
	}
}

func TestTaskRunClip(t *testing.T) {
	resolver := &fakeResolver{access: &playback.Access{URL: "http://cdn.example/clip.mp4"}}
	fetcher := newFakeFetcher()
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindClip, ID: "clip-1", Title: "funny moment"},
		model.TaskSetup{Priority: 2},
		Deps{Resolver: resolver, Fetcher: fetcher},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if fetcher.manifestCalls != 0 {
		t.Errorf("Expected no manifest fetch for a clip, got %d", fetcher.manifestCalls)
	}
	if fetcher.fetchCalls != 1 {
		t.Errorf("Expected 1 segment fetch, got %d", fetcher.fetchCalls)
	}
	if got := filepath.Ext(task.OutputPath()); got != ".mp4" {
		t.Errorf("Expected .mp4 output for a clip, got %q", got)
	}
}

func TestTaskRetryRecoversFromTransientError(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(2, false))
	fetcher.failIndex = 1
	fetcher.failuresLeft = 2
	fetcher.segmentErr = &catalog.NetworkError{Err: errors.New("connection reset")}

	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if task.Status.Err() != nil {
		t.Errorf("Expected recovery after retries, got error: %v", task.Status.Err())
	}
	// segment 0 once, segment 1 three times
	if fetcher.fetchCalls != 4 {
		t.Errorf("Expected 4 fetch attempts, got %d", fetcher.fetchCalls)
	}
}

func TestTaskRetryBudgetExhausted(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(2, false))
	fetcher.failIndex = 0
	fetcher.failuresLeft = -1 // always fail
	fetcher.segmentErr = &catalog.NetworkError{Err: errors.New("connection reset")}

	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if task.Status.Err() == nil {
		t.Fatal("Expected a terminal error after exhausting retries")
	}
	var netErr *catalog.NetworkError
	if !errors.As(task.Status.Err(), &netErr) {
		t.Errorf("Expected NetworkError, got %v", task.Status.Err())
	}
	if fetcher.fetchCalls != 3 {
		t.Errorf("Expected 3 total attempts, got %d", fetcher.fetchCalls)
	}
	// failed tasks keep their partials for inspection
	if _, err := os.Stat(task.workDir()); err != nil {
		t.Errorf("Expected work dir to be retained after failure: %v", err)
	}
}

func TestTaskNonRetryableErrorFailsFast(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(1, false))
	fetcher.failIndex = 0
	fetcher.failuresLeft = -1
	fetcher.segmentErr = catalog.ErrNotFound

	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)

	task.run(context.Background())

	if !errors.Is(task.Status.Err(), catalog.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", task.Status.Err())
	}
	if fetcher.fetchCalls != 1 {
		t.Errorf("Expected 1 attempt for a non-retryable error, got %d", fetcher.fetchCalls)
	}
}

func TestTaskResolveErrorFinishesTask(t *testing.T) {
	resolver := &fakeResolver{err: catalog.ErrAuthorization}
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Resolver: resolver, Fetcher: newFakeFetcher()},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if !errors.Is(task.Status.Err(), catalog.ErrAuthorization) {
		t.Errorf("Expected ErrAuthorization, got %v", task.Status.Err())
	}
	if got := task.Status.Current(); got != model.StatusDone {
		t.Errorf("Expected status %q, got %q", model.StatusDone, got)
	}
}

func TestTaskPauseAndResumeKeepsProgress(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(4, false))
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)
	fetcher.onFetch = func(index int) {
		if index == 1 {
			task.Status.RequestPause()
		}
	}

	if outcome := task.run(context.Background()); outcome != OutcomePaused {
		t.Fatalf("Expected OutcomePaused, got %v", outcome)
	}
	if !task.Status.Pause.IsTrue() {
		t.Error("Expected pause state TRUE after worker yielded")
	}
	firstSnap := task.Progress.Snapshot()
	if firstSnap.File != 2 {
		t.Fatalf("Expected 2 segments before pause, got %d", firstSnap.File)
	}

	fetcher.onFetch = nil
	if !task.Status.ReleasePause() {
		t.Fatal("Failed to release pause")
	}
	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone on second admission, got %v", outcome)
	}

	snap := task.Progress.Snapshot()
	if snap.File != 4 {
		t.Errorf("Expected 4 segments after resume, got %d", snap.File)
	}
	if snap.ByteSize < firstSnap.ByteSize {
		t.Errorf("Progress went backwards: %d -> %d", firstSnap.ByteSize, snap.ByteSize)
	}
	// already-fetched segments are not re-downloaded
	if fetcher.fetchCalls != 4 {
		t.Errorf("Expected 4 total fetches across admissions, got %d", fetcher.fetchCalls)
	}
}

func TestTaskCancelDiscardsPartials(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(4, false))
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)
	fetcher.onFetch = func(index int) {
		if index == 1 {
			task.Status.RequestTerminate()
		}
	}

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if task.Status.Err() != nil {
		t.Errorf("Cancellation is not an error, got %v", task.Status.Err())
	}
	if got := task.Status.Current(); got != model.StatusDone {
		t.Errorf("Expected status %q, got %q", model.StatusDone, got)
	}
	if _, err := os.Stat(task.workDir()); !os.IsNotExist(err) {
		t.Error("Expected work dir to be discarded on cancel")
	}
	if task.OutputPath() != "" {
		t.Errorf("Expected no output path, got %q", task.OutputPath())
	}
}

func TestTaskSkipDownloadProducesNoOutput(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(3, false))
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher},
	)
	task.Status.SetDownloadSkip()

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if fetcher.fetchCalls != 0 {
		t.Errorf("Expected no segment fetches, got %d", fetcher.fetchCalls)
	}
	if task.OutputPath() != "" {
		t.Errorf("Expected no output, got %q", task.OutputPath())
	}
}

func TestTaskLiveWaitCycleAndUpdateStage(t *testing.T) {
	fetcher := newFakeFetcher(
		testManifest(2, true),
		testManifest(3, false),
	)
	resolver := &fakeResolver{access: &playback.Access{URL: "http://cdn.example/live.m3u8"}}
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindChannel, ID: "streamer"},
		model.TaskSetup{UpdateTrack: true, Priority: 2},
		Deps{Resolver: resolver, Fetcher: fetcher},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeWaiting {
		t.Fatalf("Expected OutcomeWaiting, got %v", outcome)
	}
	if got := task.Status.Current(); got != model.StatusWaiting {
		t.Errorf("Expected status %q, got %q", model.StatusWaiting, got)
	}
	if task.Status.WaitingTime() <= 0 {
		t.Error("Expected a recorded waiting time")
	}
	if snap := task.Progress.Snapshot(); snap.File != 2 {
		t.Errorf("Expected 2 segments after first cycle, got %d", snap.File)
	}

	// second admission re-resolves, finds the new segment, finishes the track
	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if resolver.calls != 2 {
		t.Errorf("Expected a fresh access grant per admission, got %d", resolver.calls)
	}
	if !task.Status.IsUpdateFound() {
		t.Error("Expected update-found flag after new segments appeared")
	}
	if snap := task.Progress.Snapshot(); snap.File != 3 {
		t.Errorf("Expected 3 segments total, got %d", snap.File)
	}
}

func TestTaskEncodingStage(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(2, false))
	processor := &fakeProcessor{probeSeconds: 120}
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123", Title: "vod"},
		model.TaskSetup{UnmuteVideo: true, Priority: 2},
		Deps{Fetcher: fetcher, Processor: processor},
	)

	if outcome := task.run(context.Background()); outcome != OutcomeDone {
		t.Fatalf("Expected OutcomeDone, got %v", outcome)
	}
	if processor.remuxCalls != 1 {
		t.Fatalf("Expected 1 remux call, got %d", processor.remuxCalls)
	}
	if !processor.lastOpts.UnmuteAudio {
		t.Error("Expected unmute option to be passed through")
	}
	if got := filepath.Ext(task.OutputPath()); got != ".mp4" {
		t.Errorf("Expected .mp4 output after encoding, got %q", got)
	}
	snap := task.Progress.Snapshot()
	if snap.TotalSeconds != 120 || snap.Seconds != 120 {
		t.Errorf("Expected 120/120 seconds, got %v/%v", snap.Seconds, snap.TotalSeconds)
	}
	if _, err := os.Stat(task.workDir()); !os.IsNotExist(err) {
		t.Error("Expected work dir to be removed after encoding")
	}
}

func TestTaskEncodingFailureKeepsPartials(t *testing.T) {
	fetcher := newFakeFetcher(testManifest(2, false))
	processor := &fakeProcessor{remuxErr: &encode.ProcessingError{Err: errors.New("exit status 1"), Detail: "moov atom not found"}}
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher, Processor: processor},
	)

	task.run(context.Background())

	var procErr *encode.ProcessingError
	if !errors.As(task.Status.Err(), &procErr) {
		t.Fatalf("Expected ProcessingError, got %v", task.Status.Err())
	}
	if _, err := os.Stat(task.workDir()); err != nil {
		t.Errorf("Expected work dir to be retained after encoding failure: %v", err)
	}
}

func TestTaskEventsPublished(t *testing.T) {
	events := NewPublisher()
	var mu sync.Mutex
	var seen []EventType
	events.Subscribe(func(e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	fetcher := newFakeFetcher(testManifest(2, false))
	task := newTestTask(t,
		model.ContentDescriptor{Kind: model.KindVideo, ID: "123"},
		model.TaskSetup{Priority: 2},
		Deps{Fetcher: fetcher, Events: events},
	)

	task.run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("Expected lifecycle events")
	}
	if seen[len(seen)-1] != EventFinished {
		t.Errorf("Expected final event %q, got %q", EventFinished, seen[len(seen)-1])
	}
	var progressSeen bool
	for _, e := range seen {
		if e == EventProgressChanged {
			progressSeen = true
		}
	}
	if !progressSeen {
		t.Error("Expected progress events during download")
	}
}
