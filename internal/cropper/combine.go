package cropper

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
)

var cropNameRE = regexp.MustCompile(`^crop_row(\d+)_col(\d+)\.jpg$`)

// Position is a grid cell index.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Combined lists the files written by CombinePairs.
type Combined struct {
	PairPaths []string `json:"combined_paths"`
	LotPaths  []string `json:"lot_paths"`
}

// Positions returns the cells that have a crop file in dir, sorted row-major.
func Positions(dir string) ([]Position, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Position
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := cropNameRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		row, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		out = append(out, Position{Row: row, Col: col})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out, nil
}

// CombinePairs joins each face crop with the verso crop at the same position
// into combined_row{r}_col{c}.jpg and stacks every pair of a column into
// lot_column_{c+1}.jpg. Positions missing on either side are skipped.
func CombinePairs(faceDir, versoDir, outDir string) (*Combined, error) {
	positions, err := Positions(faceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list face crops: %w", err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("no crops found in %s", faceDir)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &Combined{}
	columns := make(map[int][]image.Image)

	for _, p := range positions {
		name := CropName(p.Row, p.Col)
		pair, err := joinPair(filepath.Join(faceDir, name), filepath.Join(versoDir, name))
		if err != nil {
			slog.Warn("Skipping position", "row", p.Row, "col", p.Col, "error", err)
			continue
		}

		out := filepath.Join(outDir, fmt.Sprintf("combined_row%d_col%d.jpg", p.Row, p.Col))
		if err := imaging.Save(pair, out, imaging.JPEGQuality(DefaultQuality)); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", out, err)
		}
		result.PairPaths = append(result.PairPaths, out)
		columns[p.Col] = append(columns[p.Col], pair)
	}

	cols := make([]int, 0, len(columns))
	for c := range columns {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	for _, c := range cols {
		lot := stack(columns[c])
		out := filepath.Join(outDir, fmt.Sprintf("lot_column_%d.jpg", c+1))
		if err := imaging.Save(lot, out, imaging.JPEGQuality(DefaultQuality)); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", out, err)
		}
		slog.Info("Lot image written", "path", out, "pairs", len(columns[c]))
		result.LotPaths = append(result.LotPaths, out)
	}

	return result, nil
}

// joinPair scales both sides to the smaller height and places them side by
// side, face on the left.
func joinPair(facePath, versoPath string) (image.Image, error) {
	face, err := imaging.Open(facePath)
	if err != nil {
		return nil, err
	}
	verso, err := imaging.Open(versoPath)
	if err != nil {
		return nil, err
	}

	h := min(face.Bounds().Dy(), verso.Bounds().Dy())
	face = imaging.Resize(face, 0, h, imaging.Lanczos)
	verso = imaging.Resize(verso, 0, h, imaging.Lanczos)

	fw := face.Bounds().Dx()
	dst := imaging.New(fw+verso.Bounds().Dx(), h, image.White)
	dst = imaging.Paste(dst, face, image.Pt(0, 0))
	dst = imaging.Paste(dst, verso, image.Pt(fw, 0))
	return dst, nil
}

// stack places images top to bottom after widening each to the widest one.
func stack(imgs []image.Image) image.Image {
	maxW := 0
	for _, img := range imgs {
		maxW = max(maxW, img.Bounds().Dx())
	}

	scaled := make([]image.Image, len(imgs))
	total := 0
	for i, img := range imgs {
		if img.Bounds().Dx() != maxW {
			img = imaging.Resize(img, maxW, 0, imaging.Lanczos)
		}
		scaled[i] = img
		total += img.Bounds().Dy()
	}

	dst := imaging.New(maxW, total, image.White)
	y := 0
	for _, img := range scaled {
		dst = imaging.Paste(dst, img, image.Pt(0, y))
		y += img.Bounds().Dy()
	}
	return dst
}
