package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/mock"
)

type recorder struct {
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.events = append(r.events, e)
}

func newCoordinator(t *testing.T) (*Coordinator, *mock.Backend, *recorder, *clock.Mock, *observer.ObservedLogs) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 9, 8, 30, 0, 0, time.Local))

	backend := mock.NewBackend()
	backend.Put("0123", store.Profile{
		FullName:       "Ada",
		Age:            "36",
		PhoneNumber:    "0123",
		LastAttendance: store.NewTimestamp(time.Date(2024, 3, 8, 8, 0, 0, 0, time.Local)),
	})

	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core).Sugar()
	rec := &recorder{}
	s := store.New(backend, clk, log)
	return NewCoordinator(s, rec, clk, log), backend, rec, clk, logs
}

func TestRecord_KnownIdentity(t *testing.T) {
	c, backend, rec, clk, _ := newCoordinator(t)

	res := recognition.Result{
		Status: recognition.SingleKnown,
		Labels: []recognition.Label{{Name: "Ada", Confidence: "96.76%"}},
		IDs:    []string{"0123"},
	}
	events := c.Record(context.Background(), "entrance", res)

	require.Len(t, events, 1)
	require.Equal(t, events, rec.events)

	ev := events[0]
	require.NotEmpty(t, ev.ID)
	require.Equal(t, "0123", ev.Key)
	require.Equal(t, "entrance", ev.Camera)
	require.Equal(t, "96.76%", ev.Confidence)
	require.Equal(t, "Ada", ev.Profile.FullName)
	require.True(t, ev.Profile.LastAttendance.Equal(clk.Now()), "event carries the updated profile")
	require.Equal(t, clk.Now(), ev.At)

	stored, ok := backend.Profile("0123")
	require.True(t, ok)
	require.True(t, stored.LastAttendance.Equal(clk.Now()))
}

func TestRecord_SkipsUnknown(t *testing.T) {
	c, backend, rec, _, _ := newCoordinator(t)

	res := recognition.Result{
		Status: recognition.SingleUnknown,
		Labels: []recognition.Label{{Name: "Unknown", Confidence: "Unknown"}, {Name: "Unknown", Confidence: "Unknown"}},
		IDs:    []string{"", "Unknown"},
	}
	require.Empty(t, c.Record(context.Background(), "entrance", res))
	require.Empty(t, rec.events)
	require.Equal(t, 0, backend.TouchCalls)
}

func TestRecord_MissingProfileIsLoggedNotCreated(t *testing.T) {
	c, backend, rec, _, logs := newCoordinator(t)

	res := recognition.Result{
		Status: recognition.SingleUnknown,
		Labels: []recognition.Label{{Name: "Unknown", Confidence: "90.0%"}},
		IDs:    []string{"4567"},
	}
	require.Empty(t, c.Record(context.Background(), "entrance", res))
	require.Empty(t, rec.events)
	require.Equal(t, 0, backend.TouchCalls)
	_, exists := backend.Profile("4567")
	require.False(t, exists)
	require.Equal(t, 1, logs.FilterMessage("recognised identity has no member profile, skipping").Len())
}

func TestRecord_OncePerIdentityPerFrame(t *testing.T) {
	c, backend, rec, _, _ := newCoordinator(t)

	res := recognition.Result{
		Labels: []recognition.Label{{Name: "Ada"}, {Name: "Ada"}},
		IDs:    []string{"0123", "0123"},
	}
	require.Len(t, c.Record(context.Background(), "entrance", res), 1)
	require.Len(t, rec.events, 1)
	require.Equal(t, 1, backend.TouchCalls)
}

func TestRecord_EveryActiveFrameRetouches(t *testing.T) {
	c, backend, rec, clk, _ := newCoordinator(t)
	res := recognition.Result{Labels: []recognition.Label{{Name: "Ada"}}, IDs: []string{"0123"}}

	c.Record(context.Background(), "entrance", res)
	clk.Add(time.Second)
	c.Record(context.Background(), "entrance", res)

	require.Len(t, rec.events, 2)
	require.Equal(t, 2, backend.TouchCalls)
}

func TestRecord_SkippedFrameIsNotRecorded(t *testing.T) {
	c, backend, rec, _, _ := newCoordinator(t)

	res := recognition.Result{Labels: []recognition.Label{{Name: "Ada"}}, IDs: []string{"0123"}, Skipped: true}
	require.Empty(t, c.Record(context.Background(), "entrance", res))
	require.Empty(t, rec.events)
	require.Equal(t, 0, backend.TouchCalls)
}

func TestRecord_TouchFailureEmitsNothing(t *testing.T) {
	c, backend, rec, _, logs := newCoordinator(t)
	backend.TouchError = errors.New("disk full")

	res := recognition.Result{Labels: []recognition.Label{{Name: "Ada"}}, IDs: []string{"0123"}}
	require.Empty(t, c.Record(context.Background(), "entrance", res))
	require.Empty(t, rec.events)
	require.Equal(t, 1, logs.FilterMessage("attendance not updated").Len())
}

func TestNewCoordinator_NilNotifier(t *testing.T) {
	backend := mock.NewBackend()
	backend.Put("0123", store.Profile{FullName: "Ada", Age: "36", PhoneNumber: "0123"})
	c := NewCoordinator(store.New(backend, nil, nil), nil, nil, nil)

	events := c.Record(context.Background(), "", recognition.Result{IDs: []string{"0123"}})
	require.Len(t, events, 1)
	require.Empty(t, events[0].Confidence)
}
