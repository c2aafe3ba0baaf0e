// Package attendance records recognised members and notifies subscribers.
package attendance

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Event reports one attendance update. Profile is the record after the update.
type Event struct {
	ID         string        `json:"id"`
	Key        string        `json:"key"`
	Camera     string        `json:"camera"`
	Confidence string        `json:"confidence"`
	Profile    store.Profile `json:"peopleID"`
	At         time.Time     `json:"at"`
}

// Notifier receives attendance events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }
