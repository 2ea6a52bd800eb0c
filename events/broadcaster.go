package events

import "sync"

// Broadcaster fans a single stream of Events out to any number of
// subscriber channels (spec §6's addEnvironmentListener/
// removeEnvironmentListener). Publish is safe to call concurrently with
// Subscribe/Unsubscribe, but is intended to be driven from a single
// goroutine (the client's event loop) like everything else in this
// module.
type Broadcaster struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	buffer int
}

// NewBroadcaster returns a Broadcaster whose subscriber channels are
// buffered to depth buffer (a slow subscriber drops events past that
// depth rather than blocking the event loop).
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a new listener and returns its channel along with
// a handle to pass to Unsubscribe.
func (b *Broadcaster) Subscribe() (<-chan Event, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	return ch, id
}

// Unsubscribe removes a listener previously returned by Subscribe and
// closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish fans ev out to every current subscriber. A subscriber whose
// buffer is full drops the event rather than stalling the publisher.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
