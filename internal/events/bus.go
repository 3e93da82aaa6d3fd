// Package events carries "table changed" notifications inside the process.
package events

import (
	"sync"

	"safemaint-backend/internal/model"
)

// Op says what happened to a table.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
	OpSync   Op = "sync"
)

// Event announces that the mirror snapshot of Table changed.
type Event struct {
	Table model.TableKey `json:"key"`
	Op    Op             `json:"op"`
	ID    string         `json:"id,omitempty"`
}

// Bus fans events out to subscribers. Handlers run synchronously on the
// publishing goroutine and must not block.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Channel subscribes a buffered channel. Events are dropped for a slow
// reader rather than blocking publishers. The channel is closed by cancel.
func (b *Bus) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})

	return ch, func() {
		unsubscribe()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}
