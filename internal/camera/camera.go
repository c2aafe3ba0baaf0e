// Package camera fetches frames from networked snapshot cameras.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

const (
	fetchTimeout  = 5 * time.Second
	maxFrameBytes = 8 << 20
)

// Source produces decoded frames. Next blocks until a frame is available.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Name() string
}

// HTTPSource polls a camera that serves its current picture as a JPEG at a
// fixed URL. Frames are normalised to a fixed size.
type HTTPSource struct {
	name    string
	url     string
	width   int
	height  int
	limiter *rate.Limiter
	client  *http.Client
}

// NewHTTPSource creates a source for cam. Frames are resized to width x height;
// zero values take the defaults.
func NewHTTPSource(cam config.CameraConfig, width, height int) *HTTPSource {
	if width <= 0 || height <= 0 {
		width, height = constants.FrameWidth, constants.FrameHeight
	}

	limit := rate.Inf
	if interval := cam.FrameInterval(); interval > 0 {
		limit = rate.Every(interval)
	}

	return &HTTPSource{
		name:    cam.Name,
		url:     cam.URL,
		width:   width,
		height:  height,
		limiter: rate.NewLimiter(limit, 1),
		client:  &http.Client{Timeout: fetchTimeout},
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

// Next waits for the frame rate limit, fetches one snapshot and decodes it.
func (s *HTTPSource) Next(ctx context.Context) (image.Image, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for frame slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, maxFrameBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("camera returned an empty frame")
	}

	if b := img.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		img = imaging.Resize(img, s.width, s.height, imaging.Linear)
	}
	return img, nil
}
