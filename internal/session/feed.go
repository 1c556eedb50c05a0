package session

import (
	"sync"

	"github.com/leonardotrapani/interpret/internal/aggregator"
)

type EventType string

const (
	EventSource        EventType = "source"
	EventTarget        EventType = "target"
	EventUnavailable   EventType = "unavailable"
	EventPartial       EventType = "partial"
	EventTargetChanged EventType = "target-changed"
	EventDropped       EventType = "dropped"
	EventEnded         EventType = "ended"
)

// Event is one entry of the live session feed.
type Event struct {
	Type     EventType `json:"type"`
	Seq      uint64    `json:"seq,omitempty"`
	Text     string    `json:"text,omitempty"`
	Language string    `json:"language,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func eventFromUpdate(u aggregator.Update) Event {
	switch u.Kind {
	case aggregator.SourceAppended:
		return Event{Type: EventSource, Seq: u.Seq, Text: u.Text}
	case aggregator.TargetAppended:
		return Event{Type: EventTarget, Seq: u.Seq, Text: u.Text}
	default:
		return Event{Type: EventUnavailable, Seq: u.Seq}
	}
}

const feedCapacity = 128

// feed fans events out to subscribers. Slow subscribers miss events rather
// than stall the session.
type feed struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan Event)}
}

func (f *feed) publish(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (f *feed) subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, feedCapacity)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.next
	f.next++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
