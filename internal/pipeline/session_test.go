package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/store"
)

type stubSource struct {
	name   string
	mu     sync.Mutex
	calls  int
	errs   map[int]error
	stopAt int
	cancel context.CancelFunc
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if s.stopAt > 0 && n >= s.stopAt && s.cancel != nil {
		s.cancel()
	}
	if err := s.errs[n]; err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img, nil
}

type stubProcessor struct {
	calls []recognition.State
	err   error
}

func (p *stubProcessor) Process(_ context.Context, frame image.Image, prev recognition.State) (recognition.Result, recognition.State, error) {
	p.calls = append(p.calls, prev)
	next := prev
	next.SkipNext = !prev.SkipNext
	next.Status = recognition.SingleKnown
	next.Person = &store.Profile{FullName: "Ada"}
	next.Labels = []recognition.Label{{Name: "Ada", Confidence: "96.76%"}}
	next.IDs = []string{"0123"}

	rgba := image.NewRGBA(frame.Bounds())
	res := recognition.Result{Frame: rgba, Status: next.Status, Person: next.Person, Labels: next.Labels, IDs: next.IDs, Skipped: prev.SkipNext}
	if p.err != nil {
		return recognition.Result{Frame: rgba}, next, p.err
	}
	return res, next, nil
}

type stubRecorder struct {
	results []recognition.Result
}

func (r *stubRecorder) Record(_ context.Context, cam string, res recognition.Result) []attendance.Event {
	r.results = append(r.results, res)
	if res.Skipped {
		return nil
	}
	return []attendance.Event{{Key: res.IDs[0], Camera: cam}}
}

func newSession(src *stubSource) (*Session, *stubProcessor, *stubRecorder, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC))
	proc := &stubProcessor{}
	rec := &stubRecorder{}
	s := NewSession(src, proc, rec, clk, nil)
	s.ErrorBackoff = 0
	return s, proc, rec, clk
}

func TestStep_ThreadsStateBetweenFrames(t *testing.T) {
	s, proc, rec, _ := newSession(&stubSource{name: "entrance"})
	ctx := context.Background()

	require.NoError(t, s.Step(ctx))
	require.NoError(t, s.Step(ctx))

	require.Len(t, proc.calls, 2)
	require.False(t, proc.calls[0].SkipNext)
	require.True(t, proc.calls[1].SkipNext)
	require.Equal(t, []string{"0123"}, proc.calls[1].IDs)

	require.Len(t, rec.results, 2)
	require.False(t, rec.results[0].Skipped)
	require.True(t, rec.results[1].Skipped)

	st := s.Status()
	require.Equal(t, "entrance", st.Camera)
	require.EqualValues(t, 2, st.Frames)
	require.EqualValues(t, 1, st.Events)
	require.Zero(t, st.Errors)
	require.Equal(t, "Ada", st.Person)
	require.Equal(t, recognition.SingleKnown, st.FaceStatus)
	require.NotNil(t, st.LastFrameAt)
}

func TestStep_PublishesJPEGFrames(t *testing.T) {
	s, _, _, _ := newSession(&stubSource{name: "entrance"})

	frame, updated := s.Frame()
	require.Nil(t, frame)

	require.NoError(t, s.Step(context.Background()))

	select {
	case <-updated:
	default:
		t.Fatal("update channel was not closed")
	}

	frame, _ = s.Frame()
	img, err := jpeg.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	raw, _ := s.RawFrame()
	require.NotEmpty(t, raw)
	require.NotEqual(t, frame, raw)
}

func TestStep_SourceErrorIsCounted(t *testing.T) {
	src := &stubSource{name: "lobby", errs: map[int]error{1: errors.New("camera offline")}}
	s, proc, rec, _ := newSession(src)

	err := s.Step(context.Background())
	require.Error(t, err)
	require.Empty(t, proc.calls)
	require.Empty(t, rec.results)

	st := s.Status()
	require.EqualValues(t, 1, st.Errors)
	require.Zero(t, st.Frames)
	require.Equal(t, "camera offline", st.LastError)
	require.Nil(t, st.LastFrameAt)
}

func TestStep_ProcessErrorSkipsRecording(t *testing.T) {
	s, proc, rec, _ := newSession(&stubSource{name: "entrance"})
	proc.err = errors.New("detector down")

	require.Error(t, s.Step(context.Background()))
	require.Empty(t, rec.results)

	// The flipped flag is kept so the next call alternates correctly.
	require.True(t, s.State().SkipNext)
	require.EqualValues(t, 1, s.Status().Errors)
	require.EqualValues(t, 1, s.Status().Frames)
}

func TestRun_ContinuesAfterErrorsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &stubSource{
		name:   "entrance",
		errs:   map[int]error{2: errors.New("timeout")},
		stopAt: 4,
		cancel: cancel,
	}
	s, proc, _, _ := newSession(src)

	require.NoError(t, s.Run(ctx))

	// The fourth frame was already fetched when the stop arrived and is
	// still processed to completion.
	require.Len(t, proc.calls, 3)
	st := s.Status()
	require.EqualValues(t, 3, st.Frames)
	require.EqualValues(t, 1, st.Errors)
	require.False(t, st.Running)
}

func TestSet_RejectsDuplicates(t *testing.T) {
	a, _, _, _ := newSession(&stubSource{name: "entrance"})
	b, _, _, _ := newSession(&stubSource{name: "entrance"})

	_, err := NewSet(a, b)
	require.Error(t, err)
}

func TestSet_GetAndAll(t *testing.T) {
	lobby, _, _, _ := newSession(&stubSource{name: "lobby"})
	entrance, _, _, _ := newSession(&stubSource{name: "entrance"})

	set, err := NewSet(lobby, entrance)
	require.NoError(t, err)

	got, ok := set.Get("lobby")
	require.True(t, ok)
	require.Same(t, lobby, got)

	_, ok = set.Get("garage")
	require.False(t, ok)

	all := set.All()
	require.Len(t, all, 2)
	require.Equal(t, "entrance", all[0].Name())
	require.Equal(t, "lobby", all[1].Name())
}

func TestSet_RunStopsAllSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, procA, _, _ := newSession(&stubSource{name: "a", stopAt: 3, cancel: cancel})
	b, _, _, _ := newSession(&stubSource{name: "b"})

	set, err := NewSet(a, b)
	require.NoError(t, err)
	require.NoError(t, set.Run(ctx))
	require.Len(t, procA.calls, 3)
	require.False(t, b.Status().Running)
}
