// Package cropper cuts grid cells out of a sheet image and writes them as
// JPEG files.
package cropper

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// DefaultQuality is the JPEG quality of written crops.
const DefaultQuality = 92

// CropName is the file name of the crop at (row, col).
func CropName(row, col int) string {
	return fmt.Sprintf("crop_row%d_col%d.jpg", row, col)
}

// FileCropper crops from a local image file into a local directory.
type FileCropper struct {
	// Workers bounds concurrent encodes; zero means GOMAXPROCS.
	Workers int
	Quality int
}

// New returns a FileCropper with default settings.
func New() *FileCropper {
	return &FileCropper{Quality: DefaultQuality}
}

// Crop writes one file per rectangle and returns their paths in rectangle
// order. A rectangle that cannot be written leaves an empty string at its
// position. Crop itself only fails when the source cannot be decoded, the
// output directory cannot be created, or ctx is cancelled.
func (c *FileCropper) Crop(ctx context.Context, imagePath string, rects []models.Rect, outputDir string) ([]string, error) {
	src, err := imaging.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", imagePath, err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	quality := c.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	paths := make([]string, len(rects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, r := range rects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(outputDir, CropName(r.Row, r.Col))
			if err := cropOne(src, r, out, quality); err != nil {
				slog.Warn("Crop failed", "image", imagePath, "rect", r.String(), "error", err)
				return nil
			}
			slog.Debug("Crop written", "path", out, "width", r.Dx(), "height", r.Dy())
			paths[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return paths, err
	}
	return paths, nil
}

func cropOne(src image.Image, r models.Rect, out string, quality int) error {
	rect := image.Rect(r.X0, r.Y0, r.X1, r.Y1)
	if rect.Empty() {
		return fmt.Errorf("empty rectangle")
	}
	if !rect.In(src.Bounds()) {
		return fmt.Errorf("rectangle outside image bounds %v", src.Bounds())
	}
	return imaging.Save(imaging.Crop(src, rect), out, imaging.JPEGQuality(quality))
}
