package gallery

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/logging"
)

// Source produces a gallery snapshot.
type Source interface {
	Load(ctx context.Context) (*Gallery, error)
	// Describe names the source for logs and status output.
	Describe() string
}

// FileSource loads a snapshot file written by the enrollment job.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*Gallery, error) {
	return LoadFile(s.Path)
}

func (s FileSource) Describe() string {
	return "file:" + s.Path
}

// Holder publishes the current gallery to concurrent matchers. Reload swaps
// the whole gallery at once; readers see either the old or the new one.
type Holder struct {
	current atomic.Pointer[Gallery]
	source  Source
	log     *zap.SugaredLogger
}

// NewHolder loads the initial gallery from source. A failing source is not
// fatal: the holder starts empty and the failure is logged.
func NewHolder(ctx context.Context, source Source, log *zap.SugaredLogger) *Holder {
	h := &Holder{source: source, log: logging.OrNop(log)}
	h.current.Store(Empty())
	_ = h.Reload(ctx)
	return h
}

// NewStaticHolder publishes g without a source. Reload is a no-op.
func NewStaticHolder(g *Gallery) *Holder {
	h := &Holder{log: logging.Nop()}
	if g == nil {
		g = Empty()
	}
	h.current.Store(g)
	return h
}

// Current returns the gallery to match against.
func (h *Holder) Current() *Gallery {
	return h.current.Load()
}

// Source returns the configured source, or nil.
func (h *Holder) Source() Source {
	return h.source
}

// Reload replaces the gallery with a fresh load from the source. On failure
// the gallery is emptied so nothing is recognised against stale data.
func (h *Holder) Reload(ctx context.Context) error {
	if h.source == nil {
		return nil
	}

	g, err := h.source.Load(ctx)
	if err != nil {
		h.log.Errorw("loading gallery failed, matching against an empty gallery", "source", h.source.Describe(), "error", err)
		h.current.Store(Empty())
		return err
	}

	h.current.Store(g)
	h.log.Infow("gallery loaded", "source", h.source.Describe(), "entries", g.Len(), "identities", len(g.Identities()))
	return nil
}
