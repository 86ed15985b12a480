// Package connectivity tracks whether the backend is reachable.
package connectivity

import "sync"

const subscriberBuffer = 16

// Monitor holds the latest online flag and publishes transitions only.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   map[chan bool]struct{}
}

// NewMonitor starts in the given state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[chan bool]struct{})}
}

// Online reports the latest known state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the state and notifies subscribers when it changed.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	for ch := range m.subs {
		select {
		case ch <- online:
		default:
			// Full: drop the oldest pending transition so the latest state
			// is always the last one delivered.
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
	return true
}

// Subscribe returns a channel of transitions and a cancel function that closes it.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, subscriberBuffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.mu.Unlock()
		})
	}
}
