// Package config holds runtime settings. Values start from built-in
// defaults, are overridden by DELCAMPE_* environment variables, and finally
// by command flags bound to the same fields.
package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const envPrefix = "DELCAMPE_"

// Config is the full runtime configuration.
type Config struct {
	DataDir      string
	UploadsDir   string
	ArtifactsDir string
	DBPath       string

	Port           string
	MaxUploadBytes int64

	DetectorCommand   string
	DetectMinDistance float64
	DetectEdgeMargin  float64

	DefaultRows  int
	DefaultCols  int
	PreviewColor string

	Strict bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:           "data",
		Port:              "8888",
		MaxUploadBytes:    10 << 20,
		DetectMinDistance: 0.1,
		DetectEdgeMargin:  0.05,
		DefaultRows:       1,
		DefaultCols:       1,
		PreviewColor:      "#ff3b30",
	}
}

// Load returns Default overlaid with the environment.
func Load() (Config, error) {
	c := Default()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, parse func(string) error) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			if err := parse(v); err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
			}
		}
	}

	str("DATA_DIR", &c.DataDir)
	str("UPLOADS_DIR", &c.UploadsDir)
	str("ARTIFACTS_DIR", &c.ArtifactsDir)
	str("DB_PATH", &c.DBPath)
	str("PORT", &c.Port)
	str("DETECTOR", &c.DetectorCommand)
	str("PREVIEW_COLOR", &c.PreviewColor)

	num("MAX_UPLOAD_BYTES", func(s string) (err error) {
		c.MaxUploadBytes, err = strconv.ParseInt(s, 10, 64)
		return
	})
	num("DETECT_MIN_DISTANCE", func(s string) (err error) {
		c.DetectMinDistance, err = strconv.ParseFloat(s, 64)
		return
	})
	num("DETECT_EDGE_MARGIN", func(s string) (err error) {
		c.DetectEdgeMargin, err = strconv.ParseFloat(s, 64)
		return
	})
	num("ROWS", func(s string) (err error) {
		c.DefaultRows, err = strconv.Atoi(s)
		return
	})
	num("COLS", func(s string) (err error) {
		c.DefaultCols, err = strconv.Atoi(s)
		return
	})
	num("STRICT", func(s string) (err error) {
		c.Strict, err = strconv.ParseBool(s)
		return
	})

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.DefaultRows < 1 || c.DefaultCols < 1 {
		return fmt.Errorf("default grid must be at least 1x1, got %dx%d", c.DefaultRows, c.DefaultCols)
	}
	if c.DetectMinDistance < 0 || c.DetectMinDistance >= 1 {
		return fmt.Errorf("detector min distance must be in [0,1), got %v", c.DetectMinDistance)
	}
	if c.DetectEdgeMargin < 0 || c.DetectEdgeMargin >= 0.5 {
		return fmt.Errorf("detector edge margin must be in [0,0.5), got %v", c.DetectEdgeMargin)
	}
	if _, err := c.LineColor(); err != nil {
		return err
	}
	return nil
}

// Uploads is where uploaded sheets are stored.
func (c Config) Uploads() string {
	if c.UploadsDir != "" {
		return c.UploadsDir
	}
	return filepath.Join(c.DataDir, "uploads")
}

// Artifacts is the root of all crop output directories.
func (c Config) Artifacts() string {
	if c.ArtifactsDir != "" {
		return c.ArtifactsDir
	}
	return filepath.Join(c.DataDir, "artifacts")
}

// Database is the SQLite file path.
func (c Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "delcampe.db")
}

// OutputDir is the artifact directory of one (fingerprint, kind).
func (c Config) OutputDir(hash, kind string) string {
	return filepath.Join(c.Artifacts(), hash, kind)
}

// LineColor parses PreviewColor.
func (c Config) LineColor() (color.Color, error) {
	col, err := colorful.Hex(c.PreviewColor)
	if err != nil {
		return nil, fmt.Errorf("invalid preview color %q: %w", c.PreviewColor, err)
	}
	return col.Clamped(), nil
}

// EnsureDirs creates the data directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.Uploads(), c.Artifacts(), filepath.Dir(c.Database())} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
