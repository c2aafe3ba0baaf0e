package recognition

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	boxColor  = color.RGBA{R: 255, A: 255}
	textColor = color.White
)

const (
	labelFontSize   = 16
	warningFontSize = 26

	boxLineWidth = 2
	labelHeight  = 35
	labelPadding = 6
)

// Annotator draws face boxes, labels and warnings onto frames in place.
// It is safe for concurrent use: the parsed font is read-only and every call
// builds its own face, since a truetype face caches glyphs without locking.
type Annotator struct {
	font *truetype.Font
}

func NewAnnotator() (*Annotator, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return &Annotator{font: f}, nil
}

// Faces draws a box per face and a filled label bar along its bottom edge.
func (a *Annotator) Faces(canvas *image.RGBA, boxes []image.Rectangle, labels []Label) {
	if len(boxes) == 0 {
		return
	}
	dc := gg.NewContextForRGBA(canvas)
	dc.SetFontFace(truetype.NewFace(a.font, &truetype.Options{Size: labelFontSize}))

	for i, r := range boxes {
		dc.SetColor(boxColor)
		dc.SetLineWidth(boxLineWidth)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()

		dc.DrawRectangle(float64(r.Min.X), float64(r.Max.Y-labelHeight), float64(r.Dx()), labelHeight)
		dc.Fill()

		if i < len(labels) {
			dc.SetColor(textColor)
			dc.DrawString(labels[i].String(), float64(r.Min.X+labelPadding), float64(r.Max.Y-labelPadding))
		}
	}
}

// Warning writes text in the top-left corner with its baseline at (10, 30).
func (a *Annotator) Warning(canvas *image.RGBA, text string) {
	dc := gg.NewContextForRGBA(canvas)
	dc.SetFontFace(truetype.NewFace(a.font, &truetype.Options{Size: warningFontSize}))
	dc.SetColor(boxColor)
	dc.DrawString(text, 10, 30)
}
