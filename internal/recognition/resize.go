package recognition

import (
	"image"

	"golang.org/x/image/draw"
)

// downscale shrinks img by a linear factor. Detection runs on the result.
func downscale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// upscaleBox maps a box found on the downscaled image back onto the full
// frame and clips it to the frame bounds.
func upscaleBox(r image.Rectangle, factor float64, frame image.Rectangle) image.Rectangle {
	inv := 1.0 / factor
	scaled := image.Rect(
		int(float64(r.Min.X)*inv),
		int(float64(r.Min.Y)*inv),
		int(float64(r.Max.X)*inv),
		int(float64(r.Max.Y)*inv),
	).Add(frame.Min)
	return scaled.Intersect(frame)
}

// toRGBA copies img so annotations never touch the caller's frame.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
