package attendance

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// Store is the part of the member store the coordinator uses.
type Store interface {
	Get(ctx context.Context, key string) *store.Profile
	TouchAttendance(ctx context.Context, key string) bool
}

// Coordinator turns match results into attendance updates.
type Coordinator struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	log      *zap.SugaredLogger
}

// NewCoordinator creates a coordinator. A nil notifier discards events.
func NewCoordinator(s Store, n Notifier, clk clock.Clock, log *zap.SugaredLogger) *Coordinator {
	if n == nil {
		n = NotifierFunc(func(Event) {})
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Coordinator{store: s, notifier: n, clock: clk, log: logging.OrNop(log)}
}

// Record touches the attendance of every recognised identity in res, at most
// once per identity, and emits one event per successful touch. Carried-over
// results of skipped frames are not recorded again.
func (c *Coordinator) Record(ctx context.Context, camera string, res recognition.Result) []Event {
	if res.Skipped {
		return nil
	}

	var events []Event
	seen := make(map[string]struct{}, len(res.IDs))

	for i, key := range res.IDs {
		if key == "" || key == constants.UnknownName {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		profile := c.store.Get(ctx, key)
		if profile == nil {
			c.log.Warnw("recognised identity has no member profile, skipping", "key", key, "camera", camera)
			continue
		}

		if !c.store.TouchAttendance(ctx, key) {
			c.log.Warnw("attendance not updated", "key", key, "camera", camera)
			continue
		}
		if updated := c.store.Get(ctx, key); updated != nil {
			profile = updated
		}

		ev := Event{
			ID:      uuid.NewString(),
			Key:     key,
			Camera:  camera,
			Profile: *profile,
			At:      c.clock.Now(),
		}
		if i < len(res.Labels) {
			ev.Confidence = res.Labels[i].Confidence
		}

		c.notifier.Notify(ev)
		events = append(events, ev)
		c.log.Infow("attendance recorded", "key", key, "name", profile.FullName, "camera", camera, "confidence", ev.Confidence)
	}
	return events
}
