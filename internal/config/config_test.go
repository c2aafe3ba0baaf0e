package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "STORE_PATH", "GALLERY_TOLERANCE", "RECOGNITION_SCALE", "CAMERA_URL", "WEB_PORT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Store.Backend != "file" {
		t.Errorf("expected default store backend 'file', got '%s'", cfg.Store.Backend)
	}
	if cfg.Store.Path != "data/members.json" {
		t.Errorf("expected default store path, got '%s'", cfg.Store.Path)
	}
	if cfg.Gallery.Tolerance != 0.4 {
		t.Errorf("expected default tolerance 0.4, got %f", cfg.Gallery.Tolerance)
	}
	if cfg.Recognition.Scale != 0.25 {
		t.Errorf("expected default scale 0.25, got %f", cfg.Recognition.Scale)
	}
	if cfg.Recognition.FrameWidth != 640 || cfg.Recognition.FrameHeight != 480 {
		t.Errorf("expected 640x480 frames, got %dx%d", cfg.Recognition.FrameWidth, cfg.Recognition.FrameHeight)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
	if len(cfg.Cameras) != 0 {
		t.Errorf("expected no cameras without CAMERA_URL, got %d", len(cfg.Cameras))
	}
}

func TestLoad_SeedMembers(t *testing.T) {
	cfg := Load()

	member, ok := cfg.Seed.Members["0123"]
	if !ok {
		t.Fatal("expected embedded seed member '0123'")
	}
	if member.FullName != "John Doe" {
		t.Errorf("expected seed member 'John Doe', got '%s'", member.FullName)
	}
	if member.PhoneNumber != "0123456789" {
		t.Errorf("expected seed phone '0123456789', got '%s'", member.PhoneNumber)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("GALLERY_TOLERANCE", "0.55")
	t.Setenv("GALLERY_WATCH", "false")
	t.Setenv("CAMERA_URL", "http://cam.local/cam-hi.jpg")
	t.Setenv("CAMERA_FPS", "5")

	cfg := Load()

	if cfg.Store.Backend != "postgres" {
		t.Errorf("expected backend to be lowercased 'postgres', got '%s'", cfg.Store.Backend)
	}
	if cfg.Gallery.Tolerance != 0.55 {
		t.Errorf("expected tolerance 0.55, got %f", cfg.Gallery.Tolerance)
	}
	if cfg.Gallery.Watch {
		t.Error("expected gallery watch to be disabled")
	}
	if len(cfg.Cameras) != 1 {
		t.Fatalf("expected one camera from CAMERA_URL, got %d", len(cfg.Cameras))
	}
	if cfg.Cameras[0].Name != "default" || cfg.Cameras[0].FPS != 5 {
		t.Errorf("unexpected camera config: %+v", cfg.Cameras[0])
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("GALLERY_TOLERANCE", "not-a-number")
	t.Setenv("WEB_PORT", "-1")

	cfg := Load()

	if cfg.Gallery.Tolerance != 0.4 {
		t.Errorf("expected default tolerance for invalid input, got %f", cfg.Gallery.Tolerance)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port for invalid input, got %d", cfg.Web.Port)
	}
}

func TestLoadCamerasFile(t *testing.T) {
	cfg := &Config{}

	if err := cfg.LoadCamerasFile("cameras.example.yaml"); err != nil {
		t.Fatalf("LoadCamerasFile() error = %v", err)
	}

	if len(cfg.Cameras) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(cfg.Cameras))
	}
	if cam := cfg.Camera("lobby"); cam == nil {
		t.Error("expected to find camera 'lobby'")
	}
	if cam := cfg.Camera("missing"); cam != nil {
		t.Errorf("expected nil for unknown camera, got %+v", cam)
	}
	if got := cfg.Camera("entrance").FrameInterval(); got != 100*time.Millisecond {
		t.Errorf("expected 100ms interval for 10 fps, got %v", got)
	}
	if got := cfg.Camera("lobby").FrameInterval(); got != 0 {
		t.Errorf("expected no pacing without fps, got %v", got)
	}
}

func TestLoadCamerasFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing url",
			content: "cameras:\n  - name: a\n",
		},
		{
			name:    "duplicate name",
			content: "cameras:\n  - name: a\n    url: http://a\n  - name: a\n    url: http://b\n",
		},
		{
			name:    "not yaml",
			content: "cameras: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cameras.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("write file: %v", err)
			}

			cfg := &Config{}
			if err := cfg.LoadCamerasFile(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadCamerasFile_Missing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.LoadCamerasFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://desk.example.org, ,https://hall.example.org")
	cfg := Load()
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://hall.example.org" {
		t.Errorf("unexpected origins: %v", cfg.Web.AllowedOrigins)
	}

	t.Setenv("WEB_ALLOWED_ORIGINS", "")
	if origins := Load().Web.AllowedOrigins; origins != nil {
		t.Errorf("expected no origins, got %v", origins)
	}
}
