// Package boundary owns the ordered per-axis pixel boundaries of a sheet grid.
//
// A Set always holds at least two strictly increasing values, starting at 0
// and ending at the natural extent of its axis. Every mutation re-sorts and
// de-duplicates before the Set is handed back, so downstream consumers can
// never see an unordered array.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

var (
	// ErrInvalidExtent is returned when the natural extent of an axis is not positive.
	ErrInvalidExtent = errors.New("invalid extent")
	// ErrInvalidCount is returned for a requested cell count below one.
	ErrInvalidCount = errors.New("invalid cell count")
	// ErrInvariant is returned when persisted values do not form a valid Set.
	ErrInvariant = errors.New("boundary invariant violated")
	// ErrFixedBoundary is returned when a caller tries to drag an image edge.
	ErrFixedBoundary = errors.New("boundary is a fixed image edge")
)

// Set is an immutable, ordered boundary array for one axis.
type Set struct {
	axis   models.Axis
	extent int
	values []int
}

// FromGrid spaces count cells evenly: values[i] = round(i * extent / count).
func FromGrid(axis models.Axis, count, extent int) (Set, error) {
	if extent <= 0 {
		return Set{}, fmt.Errorf("%w: %s extent %d", ErrInvalidExtent, axis, extent)
	}
	if count < 1 {
		return Set{}, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	values := make([]int, count+1)
	for i := 0; i <= count; i++ {
		values[i] = int(math.Round(float64(i) * float64(extent) / float64(count)))
	}
	// more cells than pixels collapses duplicates
	return Set{axis: axis, extent: extent, values: normalize(values)}, nil
}

// FromDetector builds a Set from detected internal lines. Lines are rounded
// to whole pixels and clamped strictly inside the image; the edges 0 and
// extent are always added.
func FromDetector(axis models.Axis, lines []float64, extent int) (Set, error) {
	if extent <= 0 {
		return Set{}, fmt.Errorf("%w: %s extent %d", ErrInvalidExtent, axis, extent)
	}

	values := make([]int, 0, len(lines)+2)
	values = append(values, 0, extent)
	if extent >= 2 {
		for _, l := range lines {
			if math.IsNaN(l) || math.IsInf(l, 0) {
				continue
			}
			values = append(values, clamp(int(math.Round(l)), 1, extent-1))
		}
	}

	values = normalize(values)
	if len(values) < 2 {
		return FromGrid(axis, 1, extent)
	}
	return Set{axis: axis, extent: extent, values: values}, nil
}

// Restore rebuilds a Set from persisted values exactly as stored. Values are
// validated, never re-derived, so manual edits survive a round trip.
func Restore(axis models.Axis, values []int, extent int) (Set, error) {
	if extent <= 0 {
		return Set{}, fmt.Errorf("%w: %s extent %d", ErrInvalidExtent, axis, extent)
	}
	if err := Validate(values, extent); err != nil {
		return Set{}, fmt.Errorf("restore %s boundaries: %w", axis, err)
	}
	cp := make([]int, len(values))
	copy(cp, values)
	return Set{axis: axis, extent: extent, values: cp}, nil
}

// Validate checks the Set invariants on a raw array.
func Validate(values []int, extent int) error {
	if len(values) < 2 {
		return fmt.Errorf("%w: need at least 2 values, got %d", ErrInvariant, len(values))
	}
	if values[0] != 0 {
		return fmt.Errorf("%w: first value %d, want 0", ErrInvariant, values[0])
	}
	if values[len(values)-1] != extent {
		return fmt.Errorf("%w: last value %d, want %d", ErrInvariant, values[len(values)-1], extent)
	}
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return fmt.Errorf("%w: values[%d]=%d not above values[%d]=%d",
				ErrInvariant, i, values[i], i-1, values[i-1])
		}
	}
	return nil
}

// Move replaces values[index] with coord (rounded to a whole pixel and clamped
// to the image), then re-sorts and de-duplicates. A move onto a neighbour
// collapses the pair and the Set loses a cell; callers must re-read Cells.
// The fixed edges (index 0 and the last index) and out of range indices are
// left untouched.
func (s Set) Move(index int, coord float64) Set {
	if s.IsFixed(index) || index < 0 || index >= len(s.values) {
		return s
	}
	if math.IsNaN(coord) {
		return s
	}

	values := make([]int, len(s.values))
	copy(values, s.values)
	values[index] = clamp(int(math.Round(coord)), 0, s.extent)

	return Set{axis: s.axis, extent: s.extent, values: normalize(values)}
}

// IsFixed reports whether index is one of the image edges.
func (s Set) IsFixed(index int) bool {
	return index == 0 || index == len(s.values)-1
}

// Values returns a copy of the boundary offsets.
func (s Set) Values() []int {
	out := make([]int, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of boundaries.
func (s Set) Len() int { return len(s.values) }

// At returns the boundary at index i.
func (s Set) At(i int) int { return s.values[i] }

// Cells returns the grid dimension along this axis, always len-1.
func (s Set) Cells() int { return len(s.values) - 1 }

func (s Set) Axis() models.Axis { return s.axis }
func (s Set) Extent() int       { return s.extent }

// IsZero reports whether s was never initialised.
func (s Set) IsZero() bool { return s.values == nil }

// Equal reports whether two sets hold identical values on the same axis.
func (s Set) Equal(o Set) bool {
	if s.axis != o.axis || s.extent != o.extent || len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// MarshalJSON exposes the set as its axis, extent and values.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Axis   models.Axis `json:"axis"`
		Extent int         `json:"extent"`
		Values []int       `json:"values"`
		Cells  int         `json:"cells"`
	}{s.axis, s.extent, s.values, s.Cells()})
}

func normalize(values []int) []int {
	sort.Ints(values)
	out := values[:0]
	for i, v := range values {
		if i > 0 && v == out[len(out)-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
