// Package pipeline runs the per-camera fetch, match and record loop.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// DefaultErrorBackoff is the pause after a failed frame.
const DefaultErrorBackoff = time.Second

// Processor is the matcher as seen by a session.
type Processor interface {
	Process(ctx context.Context, frame image.Image, prev recognition.State) (recognition.Result, recognition.State, error)
}

// Recorder is the attendance coordinator as seen by a session.
type Recorder interface {
	Record(ctx context.Context, camera string, res recognition.Result) []attendance.Event
}

// Status is a point-in-time view of a session.
type Status struct {
	Camera      string              `json:"camera"`
	Running     bool                `json:"running"`
	FaceStatus  recognition.Status  `json:"face_status"`
	Person      string              `json:"person,omitempty"`
	Labels      []recognition.Label `json:"labels"`
	Frames      int64               `json:"frames"`
	Errors      int64               `json:"errors"`
	Events      int64               `json:"events"`
	LastError   string              `json:"last_error,omitempty"`
	LastFrameAt *time.Time          `json:"last_frame_at,omitempty"`
}

// Session is one sequential loop for one camera. Frames are never processed
// in parallel; the matcher state is threaded from frame to frame.
type Session struct {
	source    camera.Source
	processor Processor
	recorder  Recorder
	clock     clock.Clock
	log       *zap.SugaredLogger

	// ErrorBackoff is the pause after a failed frame. Zero disables it.
	ErrorBackoff time.Duration

	mu          sync.RWMutex
	running     bool
	state       recognition.State
	frame       []byte
	raw         []byte
	updated     chan struct{}
	frames      int64
	errors      int64
	events      int64
	lastError   string
	lastFrameAt time.Time
}

func NewSession(source camera.Source, processor Processor, recorder Recorder, clk clock.Clock, log *zap.SugaredLogger) *Session {
	if clk == nil {
		clk = clock.New()
	}
	return &Session{
		source:       source,
		processor:    processor,
		recorder:     recorder,
		clock:        clk,
		log:          logging.OrNop(log).With("camera", source.Name()),
		ErrorBackoff: DefaultErrorBackoff,
		updated:      make(chan struct{}),
	}
}

// Name returns the camera name.
func (s *Session) Name() string {
	return s.source.Name()
}

// Run processes frames until ctx is cancelled. Cancellation is only observed
// between frames, so no frame is left half-recorded. Frame errors are logged
// and counted; they never stop the loop.
func (s *Session) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	s.log.Infow("pipeline started")
	for {
		if ctx.Err() != nil {
			s.log.Infow("pipeline stopped")
			return nil
		}

		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.log.Warnw("frame failed", "error", err)
			if s.ErrorBackoff > 0 {
				select {
				case <-ctx.Done():
				case <-s.clock.After(s.ErrorBackoff):
				}
			}
		}
	}
}

// Step fetches, classifies and records exactly one frame.
func (s *Session) Step(ctx context.Context) error {
	img, err := s.source.Next(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.recordError(err)
		}
		return err
	}

	s.mu.RLock()
	prev := s.state
	s.mu.RUnlock()

	// Matching and recording must complete once the frame is in hand.
	work := context.WithoutCancel(ctx)
	res, next, procErr := s.processor.Process(work, img, prev)

	var events []attendance.Event
	if procErr == nil {
		events = s.recorder.Record(work, s.source.Name(), res)
	}

	var annotated []byte
	encErr := errors.New("no annotated frame")
	if res.Frame != nil {
		annotated, encErr = encodeJPEG(res.Frame)
	}
	raw, rawErr := encodeJPEG(img)

	s.mu.Lock()
	s.state = next
	s.frames++
	s.events += int64(len(events))
	s.lastFrameAt = s.clock.Now()
	if encErr == nil {
		s.frame = annotated
	}
	if rawErr == nil {
		s.raw = raw
	}
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()

	if err := errors.Join(procErr, encErr, rawErr); err != nil {
		s.recordError(err)
		return err
	}
	return nil
}

// State returns the matcher state after the latest frame.
func (s *Session) State() recognition.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Frame returns the latest annotated JPEG (nil before the first frame) and a
// channel closed when a newer frame is available.
func (s *Session) Frame() ([]byte, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.updated
}

// RawFrame returns the latest unannotated JPEG and the same update channel.
func (s *Session) RawFrame() ([]byte, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw, s.updated
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Camera:     s.source.Name(),
		Running:    s.running,
		FaceStatus: s.state.Status,
		Labels:     s.state.Labels,
		Frames:     s.frames,
		Errors:     s.errors,
		Events:     s.events,
		LastError:  s.lastError,
	}
	if s.state.Person != nil {
		st.Person = s.state.Person.FullName
	}
	if !s.lastFrameAt.IsZero() {
		t := s.lastFrameAt
		st.LastFrameAt = &t
	}
	return st
}

func (s *Session) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.errors++
	s.lastError = err.Error()
	s.mu.Unlock()
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(constants.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
