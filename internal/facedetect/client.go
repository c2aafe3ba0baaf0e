// Package facedetect is a client for the face detection and embedding service.
package facedetect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/face-attendance/internal/recognition"
)

const (
	defaultServiceURL = "http://localhost:8000"
	defaultTimeout    = 10 * time.Second
	uploadQuality     = 90
)

// Client implements recognition.Detector and recognition.Embedder over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

var (
	_ recognition.Detector = (*Client)(nil)
	_ recognition.Embedder = (*Client)(nil)
)

// NewClient creates a new face service client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// detectResponse boxes are [x1, y1, x2, y2] in pixels of the uploaded image.
type detectResponse struct {
	Boxes [][4]int `json:"boxes"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// DetectFaces uploads img and returns the detected face boxes.
func (c *Client) DetectFaces(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	body, err := c.postImage(ctx, "/faces/detect", img, nil)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Boxes are clipped to the frame; ones left empty are not faces we can crop.
	boxes := make([]image.Rectangle, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		r := image.Rect(b[0], b[1], b[2], b[3]).Intersect(img.Bounds())
		if r.Empty() {
			continue
		}
		boxes = append(boxes, r)
	}
	return boxes, nil
}

// EmbedFaces uploads img with the boxes to embed and returns one embedding per box.
func (c *Client) EmbedFaces(ctx context.Context, img image.Image, boxes []image.Rectangle) ([][]float64, error) {
	if len(boxes) == 0 {
		return nil, nil
	}

	wire := make([][4]int, len(boxes))
	for i, b := range boxes {
		wire[i] = [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	}
	boxesJSON, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode boxes: %w", err)
	}

	body, err := c.postImage(ctx, "/faces/embed", img, map[string]string{"boxes": string(boxesJSON)})
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embeddings) != len(boxes) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(boxes), len(resp.Embeddings))
	}
	for i, e := range resp.Embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("empty embedding returned for face %d", i)
		}
	}
	return resp.Embeddings, nil
}

// postImage sends img as a JPEG "file" part plus any extra form fields.
func (c *Client) postImage(ctx context.Context, endpoint string, img image.Image, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(uploadQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, errors.New("empty response")
	}
	return body, nil
}
