package boundary

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

func assertInvariants(t *testing.T, s Set) {
	t.Helper()
	if err := Validate(s.Values(), s.Extent()); err != nil {
		t.Fatalf("invariant broken for %v: %v", s.Values(), err)
	}
}

func TestFromGrid(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		extent   int
		expected []int
	}{
		{"two rows", 2, 1000, []int{0, 500, 1000}},
		{"three cols", 3, 1000, []int{0, 333, 667, 1000}},
		{"single cell", 1, 37, []int{0, 37}},
		{"more cells than pixels", 5, 2, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromGrid(models.AxisH, tt.count, tt.extent)
			if err != nil {
				t.Fatalf("FromGrid failed: %v", err)
			}
			if !reflect.DeepEqual(s.Values(), tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, s.Values())
			}
			assertInvariants(t, s)
		})
	}
}

func TestFromGrid_Errors(t *testing.T) {
	if _, err := FromGrid(models.AxisH, 0, 100); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("Expected ErrInvalidCount, got %v", err)
	}
	if _, err := FromGrid(models.AxisH, 2, 0); !errors.Is(err, ErrInvalidExtent) {
		t.Errorf("Expected ErrInvalidExtent, got %v", err)
	}
}

func TestFromDetector(t *testing.T) {
	tests := []struct {
		name     string
		lines    []float64
		extent   int
		expected []int
	}{
		{"empty falls back to one cell", nil, 500, []int{0, 500}},
		{"unsorted with duplicates", []float64{300, 100, 300.2, 100}, 500, []int{0, 100, 300, 500}},
		{"edges are clamped inside", []float64{-20, 0, 500, 900}, 500, []int{0, 1, 499, 500}},
		{"fractional lines round", []float64{249.6}, 500, []int{0, 250, 500}},
		{"one pixel image ignores lines", []float64{0.5}, 1, []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromDetector(models.AxisV, tt.lines, tt.extent)
			if err != nil {
				t.Fatalf("FromDetector failed: %v", err)
			}
			if !reflect.DeepEqual(s.Values(), tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, s.Values())
			}
			assertInvariants(t, s)
		})
	}
}

func TestMove_CollisionCollapsesGrid(t *testing.T) {
	s, _ := FromGrid(models.AxisH, 2, 1000)
	moved := s.Move(1, 1000)

	if !reflect.DeepEqual(moved.Values(), []int{0, 1000}) {
		t.Errorf("Expected [0 1000], got %v", moved.Values())
	}
	if moved.Cells() != 1 {
		t.Errorf("Expected 1 row after collapse, got %d", moved.Cells())
	}
	if s.Cells() != 2 {
		t.Error("Move must not mutate the receiver")
	}
}

func TestMove_ReordersPastNeighbour(t *testing.T) {
	s, _ := FromGrid(models.AxisV, 4, 400)
	moved := s.Move(1, 350)

	if !reflect.DeepEqual(moved.Values(), []int{0, 200, 300, 350, 400}) {
		t.Errorf("Expected [0 200 300 350 400], got %v", moved.Values())
	}
}

func TestMove_FixedEdgesAreNoOps(t *testing.T) {
	s, _ := FromGrid(models.AxisV, 3, 300)

	for _, idx := range []int{0, 3, -1, 10} {
		moved := s.Move(idx, 150)
		if !moved.Equal(s) {
			t.Errorf("index %d: expected no-op, got %v", idx, moved.Values())
		}
	}
}

func TestMove_ClampsOutsideImage(t *testing.T) {
	s, _ := FromGrid(models.AxisV, 3, 300)

	if got := s.Move(1, -50).Values(); !reflect.DeepEqual(got, []int{0, 200, 300}) {
		t.Errorf("Expected [0 200 300], got %v", got)
	}
	if got := s.Move(2, 5000).Values(); !reflect.DeepEqual(got, []int{0, 100, 300}) {
		t.Errorf("Expected [0 100 300], got %v", got)
	}
}

func TestMove_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		extent := 1 + rng.Intn(3000)
		s, err := FromGrid(models.AxisH, 1+rng.Intn(8), extent)
		if err != nil {
			t.Fatalf("FromGrid failed: %v", err)
		}
		for step := 0; step < 50; step++ {
			idx := rng.Intn(s.Len()+2) - 1
			coord := rng.Float64()*float64(extent+200) - 100
			s = s.Move(idx, coord)
			assertInvariants(t, s)
		}
	}
}

func TestRestore(t *testing.T) {
	values := []int{0, 137, 512, 1000}
	s, err := Restore(models.AxisH, values, 1000)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !reflect.DeepEqual(s.Values(), values) {
		t.Errorf("Expected %v, got %v", values, s.Values())
	}

	values[1] = 999
	if s.At(1) != 137 {
		t.Error("Restore must copy its input")
	}
}

func TestRestore_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		values []int
	}{
		{"too short", []int{0}},
		{"missing zero", []int{5, 1000}},
		{"missing extent", []int{0, 900}},
		{"unsorted", []int{0, 600, 400, 1000}},
		{"duplicate", []int{0, 400, 400, 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Restore(models.AxisV, tt.values, 1000); !errors.Is(err, ErrInvariant) {
				t.Errorf("Expected ErrInvariant, got %v", err)
			}
		})
	}
}
