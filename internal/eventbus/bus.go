// Package eventbus carries the search and notification lifecycle
// signals (search.admitted, search.found, notifier.sent, ...) between
// the registry, the notifier, and the history writer without coupling
// them to each other.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one lifecycle signal. Data holds the typed payload
// (search.Event or notifier.NotificationEvent); subscribers type-assert
// and skip what they don't handle.
//
// Publish never blocks: a subscriber that falls behind its buffer loses
// events rather than stalling a search worker mid-notification.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns the in-memory fanout bus the app wires everywhere. It
// owns no goroutines; delivery happens on the publisher's stack.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	next atomic.Uint64
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Snapshot under the read lock; the sends happen outside it so a
	// full subscriber can't make Publish hold the lock.
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// A concurrent unsubscribe may close ch between the snapshot
		// and the send; the recover absorbs that race.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		// Enough to ride out a burst of per-search transitions.
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.next.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
