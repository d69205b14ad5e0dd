package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/viewport"
)

// ErrUnsupportedImage is returned for bytes that are not a decodable image.
var ErrUnsupportedImage = errors.New("unsupported image")

// Sheet is an uploaded image stored under its fingerprint.
type Sheet struct {
	Hash     string `json:"fingerprint"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	NaturalW int    `json:"natural_w"`
	NaturalH int    `json:"natural_h"`
}

// SaveSheet fingerprints data, reads its pixel size and writes it to dir as
// <hash><ext>. Re-uploading identical bytes reuses the existing file.
func SaveSheet(dir string, data []byte, filename string) (*Sheet, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", viewport.ErrInvalidDimension, cfg.Width, cfg.Height)
	}

	hash := dedup.Fingerprint(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = "." + format
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	path := filepath.Join(dir, hash+ext)
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to save image: %w", err)
		}
		slog.Info("Image saved", "path", path, "width", cfg.Width, "height", cfg.Height)
	}

	return &Sheet{Hash: hash, Path: path, Filename: filename, NaturalW: cfg.Width, NaturalH: cfg.Height}, nil
}
