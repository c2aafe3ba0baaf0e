package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

// Config wires a Matcher. Zero Tolerance and Scale take the defaults.
type Config struct {
	Detector  Detector
	Embedder  Embedder
	Gallery   *gallery.Holder
	Profiles  ProfileLookup
	Annotator *Annotator
	Tolerance float64
	Scale     float64
	Logger    *zap.SugaredLogger
}

// Matcher classifies frames for one or more cameras. It holds no per-camera
// state; callers thread State from one Process call to the next.
type Matcher struct {
	detector  Detector
	embedder  Embedder
	gallery   *gallery.Holder
	profiles  ProfileLookup
	annotator *Annotator
	tolerance float64
	scale     float64
	log       *zap.SugaredLogger
}

func NewMatcher(cfg Config) (*Matcher, error) {
	if cfg.Detector == nil || cfg.Embedder == nil {
		return nil, errors.New("detector and embedder are required")
	}
	if cfg.Gallery == nil {
		return nil, errors.New("gallery is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("profile lookup is required")
	}

	m := &Matcher{
		detector:  cfg.Detector,
		embedder:  cfg.Embedder,
		gallery:   cfg.Gallery,
		profiles:  cfg.Profiles,
		annotator: cfg.Annotator,
		tolerance: cfg.Tolerance,
		scale:     cfg.Scale,
		log:       logging.OrNop(cfg.Logger),
	}
	if m.tolerance <= 0 {
		m.tolerance = constants.DefaultTolerance
	}
	if m.scale <= 0 || m.scale > 1 {
		m.scale = constants.DefaultScale
	}
	if m.annotator == nil {
		a, err := NewAnnotator()
		if err != nil {
			return nil, err
		}
		m.annotator = a
	}
	return m, nil
}

// failed drops the faces carried in next and keeps its status.
func failed(canvas *image.RGBA, next State, err error) (Result, State, error) {
	next.Person, next.Boxes, next.Labels, next.IDs = nil, nil, nil, nil
	return Result{Frame: canvas, Status: next.Status}, next, err
}

// Tolerance returns the match tolerance in use.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Process classifies one frame. Every call flips prev.SkipNext: calls made
// while it is set re-emit prev's results onto the new frame without running
// detection. On error the returned state has the flag flipped and no faces,
// so the following skipped call draws nothing.
func (m *Matcher) Process(ctx context.Context, frame image.Image, prev State) (Result, State, error) {
	next := prev
	next.SkipNext = !prev.SkipNext
	canvas := toRGBA(frame)

	if prev.SkipNext {
		res := Result{
			Frame:   canvas,
			Status:  prev.Status,
			Person:  prev.Person,
			Boxes:   prev.Boxes,
			Labels:  prev.Labels,
			IDs:     prev.IDs,
			Skipped: true,
		}
		m.draw(res)
		return res, next, nil
	}

	small := downscale(frame, m.scale)
	boxes, err := m.detector.DetectFaces(ctx, small)
	if err != nil {
		return failed(canvas, next, fmt.Errorf("detecting faces: %w", err))
	}

	switch {
	case len(boxes) == 0:
		next.Status = NoFace
		next.Person, next.Boxes, next.Labels, next.IDs = nil, nil, nil, nil
		return Result{Frame: canvas, Status: NoFace}, next, nil

	case len(boxes) > 1:
		next.Status = TooManyFaces
		next.Person, next.Boxes, next.Labels, next.IDs = nil, nil, nil, nil
		res := Result{Frame: canvas, Status: TooManyFaces}
		m.draw(res)
		return res, next, nil
	}

	embeddings, err := m.embedder.EmbedFaces(ctx, small, boxes)
	if err != nil {
		return failed(canvas, next, fmt.Errorf("embedding face: %w", err))
	}
	if len(embeddings) != 1 {
		return failed(canvas, next, fmt.Errorf("embedder returned %d embeddings for 1 face", len(embeddings)))
	}

	res := m.identify(ctx, embeddings[0])
	res.Frame = canvas
	res.Boxes = []image.Rectangle{upscaleBox(boxes[0], m.scale, canvas.Bounds())}
	m.draw(res)

	next.Status = res.Status
	next.Person = res.Person
	next.Boxes = res.Boxes
	next.Labels = res.Labels
	next.IDs = res.IDs
	return res, next, nil
}

// identify matches one embedding against the current gallery. A gallery hit
// whose profile is missing is reported as SingleUnknown but keeps its key in
// IDs so the attendance coordinator can log the inconsistency.
func (m *Matcher) identify(ctx context.Context, embedding []float64) Result {
	g := m.gallery.Current()

	idx, ok := g.Match(embedding, m.tolerance)
	if !ok {
		return Result{
			Status: SingleUnknown,
			Labels: []Label{{Name: constants.UnknownName, Confidence: constants.UnknownConfidence}},
			IDs:    []string{""},
		}
	}

	key := g.Key(idx)
	confidence := FaceConfidence(g.Distance(idx, embedding), m.tolerance)

	profile := m.profiles.Get(ctx, key)
	if name := profile.DisplayName(); name != "" {
		return Result{
			Status: SingleKnown,
			Person: profile,
			Labels: []Label{{Name: name, Confidence: confidence}},
			IDs:    []string{key},
		}
	}

	m.log.Warnw("matched identity has no profile", "key", key)
	return Result{
		Status: SingleUnknown,
		Labels: []Label{{Name: constants.UnknownName, Confidence: confidence}},
		IDs:    []string{key},
	}
}

func (m *Matcher) draw(res Result) {
	if res.Status == TooManyFaces {
		m.annotator.Warning(res.Frame, constants.TooManyFacesText)
		return
	}
	m.annotator.Faces(res.Frame, res.Boxes, res.Labels)
}
