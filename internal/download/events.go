package download

import (
	"sync"

	"github.com/vodgrab/vodgrab/internal/model"
)

// EventType identifies a lifecycle notification
type EventType string

const (
	// EventStatusChanged means the task moved to a new stage or honored a
	// pause request
	EventStatusChanged EventType = "status-changed"

	// EventProgressChanged means progress counters advanced
	EventProgressChanged EventType = "progress-changed"

	// EventFinished means the task reached DONE without an error
	EventFinished EventType = "finished-ok"

	// EventFinishedWithError means the task reached DONE with a terminal
	// error recorded
	EventFinishedWithError EventType = "finished-with-error"
)

// Event is one discrete lifecycle notification. Observers that prefer
// polling can read scheduler snapshots instead.
type Event struct {
	Type     EventType
	TaskID   string
	Status   model.TaskStatus
	Progress model.ProgressSnapshot
	Err      error
}

// Publisher fans lifecycle events out to registered observers. Callbacks run
// synchronously on the emitting goroutine and must not block.
type Publisher struct {
	mu   sync.Mutex
	subs []func(Event)
}

// NewPublisher creates an empty publisher
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers an observer callback
func (p *Publisher) Subscribe(fn func(Event)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// publish delivers an event to all observers. The subscriber list is copied
// under the lock; callbacks run outside it.
func (p *Publisher) publish(event Event) {
	p.mu.Lock()
	subs := make([]func(Event), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}
