package cropper

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

func writeSheet(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 40, A: 255})
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func gridRects(xs, ys []int) []models.Rect {
	var rects []models.Rect
	for r := 0; r < len(ys)-1; r++ {
		for c := 0; c < len(xs)-1; c++ {
			rects = append(rects, models.Rect{Row: r, Col: c, X0: xs[c], Y0: ys[r], X1: xs[c+1], Y1: ys[r+1]})
		}
	}
	return rects
}

func TestCropName(t *testing.T) {
	if got := CropName(1, 2); got != "crop_row1_col2.jpg" {
		t.Errorf("Expected crop_row1_col2.jpg, got %s", got)
	}
}

func TestFileCropper_Crop(t *testing.T) {
	dir := t.TempDir()
	src := writeSheet(t, dir, "sheet.png", 300, 200)
	out := filepath.Join(dir, "out")

	rects := gridRects([]int{0, 100, 200, 300}, []int{0, 120, 200})
	paths, err := New().Crop(context.Background(), src, rects, out)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if len(paths) != len(rects) {
		t.Fatalf("Expected %d paths, got %d", len(rects), len(paths))
	}

	for i, r := range rects {
		want := filepath.Join(out, CropName(r.Row, r.Col))
		if paths[i] != want {
			t.Errorf("path %d: Expected %s, got %s", i, want, paths[i])
		}
		img, err := imaging.Open(paths[i])
		if err != nil {
			t.Fatalf("failed to open crop: %v", err)
		}
		if img.Bounds().Dx() != r.Dx() || img.Bounds().Dy() != r.Dy() {
			t.Errorf("crop %s: Expected %dx%d, got %dx%d", r, r.Dx(), r.Dy(), img.Bounds().Dx(), img.Bounds().Dy())
		}
	}
}

func TestFileCropper_OutOfBoundsLeavesHole(t *testing.T) {
	dir := t.TempDir()
	src := writeSheet(t, dir, "sheet.png", 100, 100)

	rects := []models.Rect{
		{Row: 0, Col: 0, X0: 0, Y0: 0, X1: 50, Y1: 100},
		{Row: 0, Col: 1, X0: 50, Y0: 0, X1: 150, Y1: 100},
	}
	paths, err := New().Crop(context.Background(), src, rects, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if paths[0] == "" {
		t.Error("Expected first crop to succeed")
	}
	if paths[1] != "" {
		t.Errorf("Expected hole for out-of-bounds rect, got %s", paths[1])
	}
}

func TestFileCropper_MissingSource(t *testing.T) {
	_, err := New().Crop(context.Background(), filepath.Join(t.TempDir(), "nope.png"), nil, t.TempDir())
	if err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestFileCropper_Cancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeSheet(t, dir, "sheet.png", 100, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Crop(ctx, src, gridRects([]int{0, 50, 100}, []int{0, 100}), filepath.Join(dir, "out"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCombinePairs(t *testing.T) {
	dir := t.TempDir()
	face := filepath.Join(dir, "face")
	verso := filepath.Join(dir, "verso")
	out := filepath.Join(dir, "lots")
	for _, d := range []string{face, verso} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	// column 0 has two rows, column 1 only has a face crop at row 0
	writeSheet(t, face, CropName(0, 0), 100, 60)
	writeSheet(t, verso, CropName(0, 0), 50, 40)
	writeSheet(t, face, CropName(1, 0), 80, 80)
	writeSheet(t, verso, CropName(1, 0), 80, 80)
	writeSheet(t, face, CropName(0, 1), 80, 80)
	if err := os.WriteFile(filepath.Join(face, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := CombinePairs(face, verso, out)
	if err != nil {
		t.Fatalf("CombinePairs failed: %v", err)
	}

	wantPairs := []string{
		filepath.Join(out, "combined_row0_col0.jpg"),
		filepath.Join(out, "combined_row1_col0.jpg"),
	}
	if !reflect.DeepEqual(res.PairPaths, wantPairs) {
		t.Errorf("Expected pairs %v, got %v", wantPairs, res.PairPaths)
	}
	if !reflect.DeepEqual(res.LotPaths, []string{filepath.Join(out, "lot_column_1.jpg")}) {
		t.Errorf("unexpected lots %v", res.LotPaths)
	}

	// 100x60 face + 50x40 verso at height 40: 67 + 50 wide
	pair, err := imaging.Open(res.PairPaths[0])
	if err != nil {
		t.Fatal(err)
	}
	if pair.Bounds().Dy() != 40 {
		t.Errorf("Expected pair height 40, got %d", pair.Bounds().Dy())
	}
	if w := pair.Bounds().Dx(); w < 116 || w > 118 {
		t.Errorf("Expected pair width about 117, got %d", w)
	}

	lot, err := imaging.Open(res.LotPaths[0])
	if err != nil {
		t.Fatal(err)
	}
	// widest pair is the 80+80 one on row 1
	if lot.Bounds().Dx() != 160 {
		t.Errorf("Expected lot width 160, got %d", lot.Bounds().Dx())
	}
	if lot.Bounds().Dy() <= 80 {
		t.Errorf("Expected both pairs stacked, got height %d", lot.Bounds().Dy())
	}
}

func TestPositions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{CropName(1, 0), CropName(0, 2), "combined_row0_col0.jpg", "crop_row0_col1.png"} {
		writeSheet(t, dir, name, 4, 4)
	}

	got, err := Positions(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []Position{{Row: 0, Col: 2}, {Row: 1, Col: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
