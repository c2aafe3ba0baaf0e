package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// CamerasHandler serves per-camera status and video.
type CamerasHandler struct {
	sessions *pipeline.Set
}

func NewCamerasHandler(sessions *pipeline.Set) *CamerasHandler {
	return &CamerasHandler{sessions: sessions}
}

func (h *CamerasHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.sessions.All()
	out := make([]pipeline.Status, 0, len(all))
	for _, s := range all {
		out = append(out, s.Status())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *CamerasHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Status())
}

// Video streams annotated frames as MJPEG until the client goes away.
func (h *CamerasHandler) Video(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	streamMJPEG(w, r, s.Frame)
}

// Raw streams the unannotated camera frames.
func (h *CamerasHandler) Raw(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	streamMJPEG(w, r, s.RawFrame)
}

func (h *CamerasHandler) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	name := chi.URLParam(r, "name")
	s, ok := h.sessions.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, "camera not found")
		return nil, false
	}
	return s, true
}

// streamMJPEG writes each new frame as one part of a multipart/x-mixed-replace
// response. Frames are rate-capped so a slow client never sees a backlog.
func streamMJPEG(w http.ResponseWriter, r *http.Request, latest func() ([]byte, <-chan struct{})) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(constants.StreamFrameInterval)
	defer ticker.Stop()

	for {
		frame, updated := latest()
		if len(frame) > 0 {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
