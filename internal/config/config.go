package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type Config struct {
	Store       StoreConfig
	Gallery     GalleryConfig
	Recognition RecognitionConfig
	Cameras     []CameraConfig
	Web         WebConfig
	Logging     LoggingConfig
	Seed        SeedConfig
}

type StoreConfig struct {
	Backend      string // file, postgres or mariadb (default file)
	Path         string // JSON file for the file backend (default data/members.json)
	PostgresURL  string // PostgreSQL connection URL
	MariaDBDSN   string // MariaDB DSN (e.g., attendance:attendance@tcp(mariadb:3306)/attendance?parseTime=true)
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type GalleryConfig struct {
	Source    string  // file or postgres (default file)
	Path      string  // snapshot file (default data/encodings.json)
	Tolerance float64 // maximum embedding distance accepted as a match (default 0.4)
	Watch     bool    // reload automatically when the snapshot file is replaced
}

type RecognitionConfig struct {
	DetectorURL string  // face detection/embedding service (default http://localhost:8000)
	Scale       float64 // linear downscale factor before detection (default 0.25)
	FrameWidth  int     // frames are normalised to this width (default 640)
	FrameHeight int     // frames are normalised to this height (default 480)
}

type CameraConfig struct {
	Name string  `yaml:"name"`
	URL  string  `yaml:"url"`
	FPS  float64 `yaml:"fps"` // 0 means as fast as the camera answers
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

type LoggingConfig struct {
	Level      string // debug, info, warn, error (default info)
	File       string // optional log file, rotated
	MaxSizeMB  int    // rotate after this many megabytes (default 50)
	MaxBackups int    // rotated files to keep (default 5)
}

type SeedConfig struct {
	Members map[string]SeedMember `yaml:"members"`
}

type SeedMember struct {
	FullName    string `yaml:"full_name"`
	Age         string `yaml:"age"`
	PhoneNumber string `yaml:"phone_number"`
}

type camerasFile struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool accepts anything strconv.ParseBool does.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var seed SeedConfig
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded seed.yaml: " + err.Error())
	}

	cfg := &Config{
		Store: StoreConfig{
			Backend:      strings.ToLower(envString("STORE_BACKEND", "file")),
			Path:         envString("STORE_PATH", "data/members.json"),
			PostgresURL:  os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Gallery: GalleryConfig{
			Source:    strings.ToLower(envString("GALLERY_SOURCE", "file")),
			Path:      envString("GALLERY_PATH", "data/encodings.json"),
			Tolerance: envFloat("GALLERY_TOLERANCE", 0.4),
			Watch:     envBool("GALLERY_WATCH", true),
		},
		Recognition: RecognitionConfig{
			DetectorURL: envString("DETECTOR_URL", "http://localhost:8000"),
			Scale:       envFloat("RECOGNITION_SCALE", 0.25),
			FrameWidth:  envInt("FRAME_WIDTH", 640),
			FrameHeight: envInt("FRAME_HEIGHT", 480),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Logging: LoggingConfig{
			Level:      envString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
		},
		Seed: seed,
	}

	if url := os.Getenv("CAMERA_URL"); url != "" {
		cfg.Cameras = []CameraConfig{{
			Name: envString("CAMERA_NAME", "default"),
			URL:  url,
			FPS:  envFloat("CAMERA_FPS", 0),
		}}
	}

	return cfg
}

// LoadCamerasFile replaces the camera list with the cameras defined in a YAML file.
func (c *Config) LoadCamerasFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("reading cameras file: %w", err)
	}

	var f camerasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing cameras file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Cameras))
	for i, cam := range f.Cameras {
		if cam.Name == "" || cam.URL == "" {
			return fmt.Errorf("camera %d: name and url are required", i)
		}
		if _, dup := seen[cam.Name]; dup {
			return fmt.Errorf("camera %q defined twice", cam.Name)
		}
		seen[cam.Name] = struct{}{}
	}

	c.Cameras = f.Cameras
	return nil
}

// Camera returns the camera with the given name, or nil.
func (c *Config) Camera(name string) *CameraConfig {
	for i := range c.Cameras {
		if c.Cameras[i].Name == name {
			return &c.Cameras[i]
		}
	}
	return nil
}

// FrameInterval converts the configured FPS into a minimum delay between frames.
// Zero means no pacing.
func (c CameraConfig) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FPS)
}
