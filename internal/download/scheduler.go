package download

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vodgrab/vodgrab/internal/model"
)

// DefaultMaxConcurrent is the default concurrency limit
const DefaultMaxConcurrent = 2

// TaskSnapshot is a read-only view of one task for observers
type TaskSnapshot struct {
	ID         string                 `json:"id"`
	Kind       model.ContentKind      `json:"kind"`
	ContentID  string                 `json:"content_id"`
	Title      string                 `json:"title"`
	Status     model.TaskStatus       `json:"status"`
	Active     bool                   `json:"active"`
	Paused     bool                   `json:"paused"`
	Priority   int                    `json:"priority"`
	Progress   model.ProgressSnapshot `json:"progress"`
	Error      string                 `json:"error,omitempty"`
	OutputPath string                 `json:"output_path,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// Scheduler owns the task collection. It enforces the concurrency limit,
// promotes the highest-priority waiting task when a slot frees (ties broken
// by enqueue order), and carries user commands to the tasks' cooperative
// flags. The task collection is mutated only while holding the scheduler's
// lock.
type Scheduler struct {
	mu            sync.Mutex
	tasks         map[string]*Task
	order         []*Task // enqueue order, for FIFO tie-break and listing
	queued        map[string]bool
	running       map[string]bool
	preempted     map[string]bool
	maxConcurrent int
	started       bool
	events        *Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler. Tasks can be enqueued before
// Start; nothing runs until Start is called.
func NewScheduler(maxConcurrent int, events *Publisher) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if events == nil {
		events = NewPublisher()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:         make(map[string]*Task),
		queued:        make(map[string]bool),
		running:       make(map[string]bool),
		preempted:     make(map[string]bool),
		maxConcurrent: maxConcurrent,
		events:        events,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Events returns the scheduler's lifecycle event publisher
func (s *Scheduler) Events() *Publisher {
	return s.events
}

// Start begins promoting queued tasks
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.started = true
	s.promoteLocked()
	s.mu.Unlock()
}

// Close stops promotion, cancels the engine context, and waits for running
// workers to unwind
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Enqueue adds a task to the waiting queue. Tasks created with the same
// priority run in enqueue order.
func (s *Scheduler) Enqueue(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return
	}
	t.enqueuedAt = time.Now()
	t.deps.Events = s.events
	s.tasks[t.ID] = t
	s.order = append(s.order, t)
	s.queued[t.ID] = true
	t.Status.SetStatus(model.StatusWaiting)
	s.promoteLocked()
}

// Pause asks a task to pause at its next safe checkpoint. A task that is
// not running is paused immediately.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	if !t.Status.RequestPause() {
		return fmt.Errorf("task already pausing or paused: %s", id)
	}
	if !s.running[id] {
		// No worker to honor the request; honor it here
		t.Status.Pause.SetTrue()
		delete(s.queued, id)
	}
	return nil
}

// Resume reverses a completed pause. The task is re-admitted through the
// waiting queue, never resumed in place, so the concurrency limit holds.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	if !t.Status.ReleasePause() {
		return fmt.Errorf("task is not paused: %s", id)
	}
	if !s.running[id] && !t.Status.Terminate.IsTrue() {
		s.queued[id] = true
		t.Status.SetStatus(model.StatusWaiting)
	}
	s.promoteLocked()
	return nil
}

// Cancel requests cooperative termination. A running worker honors it at
// the next checkpoint; an idle task is finalized immediately. Termination
// cannot be reversed.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("task not found: %s", id)
	}
	t.Status.RequestTerminate()
	if s.running[id] || t.Status.Terminate.IsTrue() {
		s.mu.Unlock()
		return nil
	}

	// Claim the task so promotion cannot pick it up mid-finalize
	delete(s.queued, id)
	s.running[id] = true
	s.mu.Unlock()

	t.finalize()

	s.mu.Lock()
	delete(s.running, id)
	s.promoteLocked()
	s.mu.Unlock()
	return nil
}

// SetPriority rewrites a task's ordering key and re-evaluates which tasks
// should be running. Preemption is cooperative: an outranked running task is
// asked to pause and re-queued once it yields.
func (s *Scheduler) SetPriority(id string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	t.Setup.Priority = priority * 2

	if s.queued[id] && s.started {
		if victim := s.lowestRunningLocked(); victim != nil && victim.Setup.Priority < t.Setup.Priority {
			if victim.Status.RequestPause() {
				s.preempted[victim.ID] = true
			}
		}
	}
	s.promoteLocked()
	return nil
}

// SetMaxConcurrent adjusts the concurrency limit. Shrinking takes effect as
// running tasks finish; nothing is interrupted.
func (s *Scheduler) SetMaxConcurrent(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.maxConcurrent = n
	s.promoteLocked()
	s.mu.Unlock()
}

// SkipWaiting makes a live task re-poll immediately instead of sleeping out
// its waiting interval
func (s *Scheduler) SkipWaiting(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	t.Status.SetSkipWaiting(true)
	return nil
}

// Snapshot returns a read-only view of one task
func (s *Scheduler) Snapshot(id string) (TaskSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return s.snapshotLocked(t), true
}

// Snapshots returns read-only views of all tasks in enqueue order
func (s *Scheduler) Snapshots() []TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshots := make([]TaskSnapshot, 0, len(s.order))
	for _, t := range s.order {
		snapshots = append(snapshots, s.snapshotLocked(t))
	}
	return snapshots
}

func (s *Scheduler) snapshotLocked(t *Task) TaskSnapshot {
	status := t.Status.Current()
	paused := t.Status.Pause.IsTrue()
	snapshot := TaskSnapshot{
		ID:         t.ID,
		Kind:       t.Descriptor.Kind,
		ContentID:  t.Descriptor.ID,
		Title:      t.Descriptor.Title,
		Status:     status,
		Active:     status.OccupiesSlot() && !paused,
		Paused:     paused,
		Priority:   t.Setup.Priority,
		Progress:   t.Progress.Snapshot(),
		EnqueuedAt: t.enqueuedAt,
	}
	if err := t.Status.Err(); err != nil {
		snapshot.Error = err.Error()
	}
	if t.Status.Terminate.IsTrue() {
		snapshot.OutputPath = t.OutputPath()
	}
	return snapshot
}

// promoteLocked fills free slots with the best waiting tasks. Callers hold
// the scheduler lock.
func (s *Scheduler) promoteLocked() {
	if !s.started {
		return
	}
	for len(s.running) < s.maxConcurrent {
		next := s.nextEligibleLocked()
		if next == nil {
			return
		}
		delete(s.queued, next.ID)
		s.running[next.ID] = true
		s.wg.Add(1)
		go s.runTask(next)
	}
}

// nextEligibleLocked picks the queued task with the highest priority,
// breaking ties by enqueue order
func (s *Scheduler) nextEligibleLocked() *Task {
	var best *Task
	for _, t := range s.order {
		if !s.queued[t.ID] {
			continue
		}
		if !t.Status.Pause.IsFalse() || !t.Status.Terminate.IsFalse() {
			continue
		}
		if best == nil || t.Setup.Priority > best.Setup.Priority {
			best = t
		}
	}
	return best
}

// lowestRunningLocked returns the running task with the lowest priority
func (s *Scheduler) lowestRunningLocked() *Task {
	var lowest *Task
	for _, t := range s.order {
		if !s.running[t.ID] {
			continue
		}
		if lowest == nil || t.Setup.Priority < lowest.Setup.Priority {
			lowest = t
		}
	}
	return lowest
}

// runTask drives one admission of a task and settles its slot afterwards
func (s *Scheduler) runTask(t *Task) {
	defer s.wg.Done()
	outcome := t.run(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, t.ID)

	switch outcome {
	case OutcomePaused:
		if s.preempted[t.ID] {
			// Scheduler-initiated pause: put the task straight back in
			// the waiting queue
			delete(s.preempted, t.ID)
			t.Status.Pause.SetFalse()
			t.Status.SetStatus(model.StatusWaiting)
			s.queued[t.ID] = true
		}
	case OutcomeWaiting:
		wait := t.Status.WaitingTime()
		if t.Status.IsWaitingSkipped() {
			wait = 0
		}
		if wait <= 0 {
			s.queued[t.ID] = true
		} else {
			id := t.ID
			time.AfterFunc(wait, func() { s.readmit(id) })
		}
	case OutcomeDone:
		// A preemption victim can finish instead of pausing when
		// termination wins the race; drop its requeue claim
		delete(s.preempted, t.ID)
	}
	s.promoteLocked()
}

// readmit returns a live task to the waiting queue after its poll interval
func (s *Scheduler) readmit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || s.running[id] || s.queued[id] {
		return
	}
	if !t.Status.Terminate.IsFalse() || !t.Status.Pause.IsFalse() {
		return
	}
	s.queued[id] = true
	s.promoteLocked()
}
