package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera pipelines and the web server",
	Long: `Start one recognition pipeline per configured camera and the web server.

Cameras come from CAMERAS_FILE (YAML) or a single CAMERA_URL. Every recognised
member has their last attendance updated and is announced on /api/v1/events.
Annotated feeds are served at /video/{camera}.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("cameras", "", "YAML file listing the cameras (overrides CAMERAS_FILE)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	camerasFile := mustGetString(cmd, "cameras")
	if camerasFile == "" {
		camerasFile = os.Getenv("CAMERAS_FILE")
	}
	if camerasFile != "" {
		if err := cfg.LoadCamerasFile(camerasFile); err != nil {
			return err
		}
	}
	if len(cfg.Cameras) == 0 {
		return errors.New("no cameras configured: set CAMERAS_FILE or CAMERA_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := newBackends(cfg, log)
	defer func() {
		if err := b.Close(); err != nil {
			log.Warnw("closing storage", "error", err)
		}
	}()

	members, err := b.store(ctx)
	if err != nil {
		return err
	}

	source, err := b.gallerySource(ctx)
	if err != nil {
		return err
	}
	holder := gallery.NewHolder(ctx, source, log)

	detector := facedetect.NewClient(cfg.Recognition.DetectorURL)
	matcher, err := recognition.NewMatcher(recognition.Config{
		Detector:  detector,
		Embedder:  detector,
		Gallery:   holder,
		Profiles:  members,
		Tolerance: cfg.Gallery.Tolerance,
		Scale:     cfg.Recognition.Scale,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}

	events := attendance.NewBroadcaster()
	defer events.Close()
	coordinator := attendance.NewCoordinator(members, events, b.clock, log)

	sessions := make([]*pipeline.Session, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		src := camera.NewHTTPSource(cam, cfg.Recognition.FrameWidth, cfg.Recognition.FrameHeight)
		sessions = append(sessions, pipeline.NewSession(src, matcher, coordinator, b.clock, log))
	}
	set, err := pipeline.NewSet(sessions...)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg.Web, web.Deps{
		Members:   members,
		Gallery:   holder,
		Tolerance: matcher.Tolerance(),
		Sessions:  set,
		Events:    events,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return set.Run(gctx)
	})
	if fs, ok := source.(gallery.FileSource); ok && cfg.Gallery.Watch {
		watcher := gallery.NewWatcher(holder, fs.Path, gallery.DefaultWatchDelay, log)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Infow("face attendance running",
		"cameras", len(cfg.Cameras),
		"addr", fmt.Sprintf("http://%s:%d", cfg.Web.Host, cfg.Web.Port),
		"gallery_entries", holder.Current().Len(),
	)

	err = g.Wait()
	log.Infow("stopped", "events_dropped", events.Dropped())
	return err
}
