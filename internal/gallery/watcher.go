package gallery

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/logging"
)

// DefaultWatchDelay collapses the burst of events produced by one file replace.
const DefaultWatchDelay = 500 * time.Millisecond

// Watcher reloads a Holder whenever its snapshot file is written or replaced.
type Watcher struct {
	holder *Holder
	path   string
	delay  time.Duration
	log    *zap.SugaredLogger

	// Reloaded, when set, is called after every reload attempt.
	Reloaded func(err error)
}

func NewWatcher(holder *Holder, path string, delay time.Duration, log *zap.SugaredLogger) *Watcher {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &Watcher{holder: holder, path: path, delay: delay, log: logging.OrNop(log)}
}

// Run watches until ctx is cancelled. The parent directory is watched rather
// than the file itself, since atomic replaces swap the inode.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)
	debounced := debounce.New(w.delay)
	// Replace any pending reload so none starts after Run returns.
	defer debounced(func() {})
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		err := w.holder.Reload(ctx)
		if w.Reloaded != nil {
			w.Reloaded(err)
		}
	}

	w.log.Infow("watching gallery snapshot", "path", w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.log.Debugw("gallery snapshot changed", "op", ev.Op.String())
				debounced(reload)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("gallery watcher error", "error", err)
		}
	}
}
