package syncer

import (
	"context"
	"sync"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/store"
)

// EventType distinguishes between coordinator signals.
type EventType int

const (
	// EventHydrated reports that the store has loaded its snapshot.
	EventHydrated EventType = iota + 1
	// EventSignedIn carries the identity of a new session.
	EventSignedIn
	// EventSignedOut ends the session.
	EventSignedOut
	// EventOnline reports connectivity regained.
	EventOnline
	// EventOffline reports connectivity lost.
	EventOffline
	// EventRefresh forces a pull.
	EventRefresh
	// EventPush carries a realtime change from the gateway.
	EventPush
	// EventPullResult carries the outcome of an off-loop pull.
	EventPullResult
	// EventDrain requests a drain pass.
	EventDrain
	// EventFlush requests a bounded drain and reports back when done.
	EventFlush
)

func (t EventType) String() string {
	switch t {
	case EventHydrated:
		return "hydrated"
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventRefresh:
		return "refresh"
	case EventPush:
		return "push"
	case EventPullResult:
		return "pull_result"
	case EventDrain:
		return "drain"
	case EventFlush:
		return "flush"
	}
	return "unknown"
}

// Event is one coordinator signal. Only the field matching Type is set.
type Event struct {
	Type     EventType
	Identity gateway.Identity
	Push     *pushEvent
	Pull     *pullResult
	Flush    *flushRequest
}

type pushEvent struct {
	sub    uint64
	change gateway.Change
}

type pullResult struct {
	gen   uint64
	state store.RemoteState
	err   error
}

type flushRequest struct {
	ctx  context.Context
	done chan struct{}
}

// eventQueue is a thread-safe unbounded FIFO queue of events.
//
// The queue uses a buffered signal channel so the Run loop can wait on it
// alongside context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Release pointers held by the slot.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
