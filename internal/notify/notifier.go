package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the category of an event. Kinds are stable strings:
// sinks may use them as topic segments or journal columns.
type Kind string

const (
	// KindConnected signals a device connection state change ("true"/"false").
	KindConnected Kind = "connected"

	// KindRecording signals a recording state change ("true"/"false").
	KindRecording Kind = "recording"

	// KindCaptureName signals that the capture name changed.
	KindCaptureName Kind = "capture_name"

	// KindCaptureFolder signals that the capture folder changed.
	KindCaptureFolder Kind = "capture_folder"

	// KindCaptureDescription signals that the capture description was set.
	KindCaptureDescription Kind = "capture_description"

	// KindCommand describes a received control command, human-readable.
	KindCommand Kind = "command"

	// KindStatus carries human-readable status lines (operation outcomes).
	KindStatus Kind = "status"

	// KindError carries a human-readable failure cause.
	KindError Kind = "error"
)

// Event is a single notification: a stable kind plus a string payload.
// Events are ephemeral; they are created on publish and discarded after
// every subscriber has consumed (or dropped) them.
type Event struct {
	Kind  Kind
	Value string
	Time  time.Time
}

// defaultBuffer is the subscription channel capacity used when the
// caller passes a non-positive buffer size.
const defaultBuffer = 64

// Notifier fans events out to subscribers without ever blocking the
// publisher. Delivery order within a single publishing goroutine is
// preserved per subscriber; when a subscriber's buffer is full the
// event is dropped for that subscriber and counted.
//
// All methods are safe for concurrent use.
type Notifier struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// New creates a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	ch       chan Event
	notifier *Notifier
	once     sync.Once
}

// Events returns the channel events are delivered on. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.notifier.remove(s)
		close(s.ch)
	})
}

// Subscribe registers a new subscriber with the given channel buffer.
// A non-positive buffer selects the default.
func (n *Notifier) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription{
		ch:       make(chan Event, buffer),
		notifier: n,
	}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

func (n *Notifier) remove(sub *Subscription) {
	n.mu.Lock()
	delete(n.subs, sub)
	n.mu.Unlock()
}

// Publish delivers an event to every subscriber. It never blocks: if a
// subscriber's buffer is full the event is dropped for that subscriber.
func (n *Notifier) Publish(kind Kind, value string) {
	evt := Event{Kind: kind, Value: value, Time: time.Now()}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for sub := range n.subs {
		select {
		case sub.ch <- evt:
		default:
			n.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of events dropped across all
// subscribers since the Notifier was created.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// SubscriberCount returns the number of active subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
