package attendance

import (
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Broadcaster fans events out to subscribers. A subscriber whose buffer is
// full misses the event rather than stalling the pipeline.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
	closed    bool
	dropped   atomic.Int64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe adds a listener. The channel is closed by Unsubscribe or Close.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Notify sends an event to all listeners.
func (b *Broadcaster) Notify(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped returns how many deliveries were skipped because a listener was full.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every listener channel. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}
