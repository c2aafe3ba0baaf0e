package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

// GalleryHandler exposes the loaded face gallery.
type GalleryHandler struct {
	holder    *gallery.Holder
	tolerance float64
	log       *zap.SugaredLogger
}

func NewGalleryHandler(holder *gallery.Holder, tolerance float64, log *zap.SugaredLogger) *GalleryHandler {
	return &GalleryHandler{holder: holder, tolerance: tolerance, log: logging.OrNop(log)}
}

// GalleryInfo summarises the current gallery.
type GalleryInfo struct {
	Source     string         `json:"source,omitempty"`
	Entries    int            `json:"entries"`
	Dimension  int            `json:"dimension"`
	Tolerance  float64        `json:"tolerance"`
	Identities map[string]int `json:"identities"`
}

func (h *GalleryHandler) info() GalleryInfo {
	g := h.holder.Current()
	info := GalleryInfo{
		Entries:    g.Len(),
		Dimension:  g.Dim(),
		Tolerance:  h.tolerance,
		Identities: g.Identities(),
	}
	if src := h.holder.Source(); src != nil {
		info.Source = src.Describe()
	}
	return info
}

func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.info())
}

// Reload re-reads the gallery from its source. On failure the gallery is left
// empty, which the response reports.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.holder.Reload(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, "reloading gallery: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.info())
}

// Conflicts lists cross-identity entries within tolerance of each other.
// ?tolerance= overrides the configured tolerance.
func (h *GalleryHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	tolerance := h.tolerance
	if s := r.URL.Query().Get("tolerance"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "invalid tolerance")
			return
		}
		tolerance = v
	}

	conflicts := gallery.FindConflicts(h.holder.Current(), tolerance)
	if conflicts == nil {
		conflicts = []gallery.Conflict{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tolerance": tolerance,
		"conflicts": conflicts,
	})
}
