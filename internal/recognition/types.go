// Package recognition turns camera frames into classified, annotated match results.
package recognition

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Detector finds faces in an image. Boxes are in the image's own coordinates.
type Detector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// Embedder computes one embedding per box, in box order.
type Embedder interface {
	EmbedFaces(ctx context.Context, img image.Image, boxes []image.Rectangle) ([][]float64, error)
}

// ProfileLookup resolves identity keys to profiles. *store.Store satisfies it.
type ProfileLookup interface {
	Get(ctx context.Context, key string) *store.Profile
}

// Status classifies a processed frame.
type Status int

const (
	NoFace Status = iota
	SingleKnown
	SingleUnknown
	TooManyFaces
)

func (s Status) String() string {
	switch s {
	case NoFace:
		return "no_face"
	case SingleKnown:
		return "single_known"
	case SingleUnknown:
		return "single_unknown"
	case TooManyFaces:
		return "too_many_faces"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Label is the name and confidence shown for one face.
type Label struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence"`
}

func (l Label) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Confidence)
}

// State carries everything one call needs from the previous call on the same
// camera. The zero value is the state before the first frame.
type State struct {
	// SkipNext is set after an active call; the next call re-emits this
	// state's results instead of running detection.
	SkipNext bool

	Status Status
	Person *store.Profile
	Boxes  []image.Rectangle
	Labels []Label
	// IDs holds one identity key per face, empty for unmatched faces.
	IDs []string
}

// Result is the outcome of one Process call. Boxes, Labels and IDs correspond
// position by position.
type Result struct {
	Frame  *image.RGBA
	Status Status
	Person *store.Profile
	Boxes  []image.Rectangle
	Labels []Label
	IDs    []string
	// Skipped is set when the results were carried over from the previous call.
	Skipped bool
}
