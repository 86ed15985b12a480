// Package eventbus fans state change notifications out to in-process subscribers.
package eventbus

import (
	"sync"
	"time"
)

// Kinds of state change.
const (
	KindOfflineTransfer = "transfer.offline"
	KindOnlineTransfer  = "transfer.online"
	KindDrained         = "queue.drained"
	KindCredited        = "sms.credited"
	KindRefreshed       = "ledger.refreshed"
	KindSession         = "session.changed"
	KindConnectivity    = "connectivity.changed"
)

// Event tells subscribers the persisted state changed and should be re-read.
type Event struct {
	Kind    string
	Detail  string
	Balance int64
	At      time.Time
}

const subscriberBuffer = 32

// Bus is an in-memory pub/sub. Publish never blocks; a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// New builds an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Publish delivers e to every subscriber with buffer space.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of events and a function that unsubscribes and closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}
