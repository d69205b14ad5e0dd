package boundary

import (
	"fmt"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// State is the edit state of a Grid.
type State int

const (
	// Clean boundaries came from an even grid or the detector.
	Clean State = iota
	// Dirty boundaries have been moved by hand since the last reset.
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

// Grid holds the H and V boundary sets of one sheet and tracks whether they
// were edited by hand. Grid is not safe for concurrent use; the owning
// session serializes edits.
type Grid struct {
	naturalW int
	naturalH int
	h        Set
	v        Set
	state    State
}

// NewGrid seeds an even rows x cols grid.
func NewGrid(naturalW, naturalH, rows, cols int) (*Grid, error) {
	h, err := FromGrid(models.AxisH, rows, naturalH)
	if err != nil {
		return nil, err
	}
	v, err := FromGrid(models.AxisV, cols, naturalW)
	if err != nil {
		return nil, err
	}
	return &Grid{naturalW: naturalW, naturalH: naturalH, h: h, v: v, state: Clean}, nil
}

// NewGridFromDetector seeds the grid from detected internal lines.
func NewGridFromDetector(naturalW, naturalH int, hLines, vLines []float64) (*Grid, error) {
	g := &Grid{naturalW: naturalW, naturalH: naturalH}
	if err := g.InitFromDetector(hLines, vLines); err != nil {
		return nil, err
	}
	return g, nil
}

// RestoreGrid rebuilds a grid from persisted boundaries without re-deriving
// them. A restored grid that differs from an even split of the same size is
// treated as hand edited, so a later SetGridDimensions with matching counts
// keeps it.
func RestoreGrid(naturalW, naturalH int, hValues, vValues []int) (*Grid, error) {
	h, err := Restore(models.AxisH, hValues, naturalH)
	if err != nil {
		return nil, err
	}
	v, err := Restore(models.AxisV, vValues, naturalW)
	if err != nil {
		return nil, err
	}

	g := &Grid{naturalW: naturalW, naturalH: naturalH, h: h, v: v, state: Clean}
	evenH, _ := FromGrid(models.AxisH, h.Cells(), naturalH)
	evenV, _ := FromGrid(models.AxisV, v.Cells(), naturalW)
	if !h.Equal(evenH) || !v.Equal(evenV) {
		g.state = Dirty
	}
	return g, nil
}

// InitFromDetector replaces both axes with detector output and marks the
// grid clean.
func (g *Grid) InitFromDetector(hLines, vLines []float64) error {
	h, err := FromDetector(models.AxisH, hLines, g.naturalH)
	if err != nil {
		return err
	}
	v, err := FromDetector(models.AxisV, vLines, g.naturalW)
	if err != nil {
		return err
	}
	g.h, g.v, g.state = h, v, Clean
	return nil
}

// SetGridDimensions resets an axis to an even split unless the grid was hand
// edited and that axis already has the requested count. The grid is clean
// afterwards.
func (g *Grid) SetGridDimensions(rows, cols int) error {
	if rows < 1 || cols < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidCount, rows, cols)
	}

	h, v := g.h, g.v
	if g.state == Clean || h.Cells() != rows {
		var err error
		if h, err = FromGrid(models.AxisH, rows, g.naturalH); err != nil {
			return err
		}
	}
	if g.state == Clean || v.Cells() != cols {
		var err error
		if v, err = FromGrid(models.AxisV, cols, g.naturalW); err != nil {
			return err
		}
	}

	g.h, g.v, g.state = h, v, Clean
	return nil
}

// Move applies moveBoundary on one axis and marks the grid dirty. Fixed
// edges are left untouched and do not change the state.
func (g *Grid) Move(axis models.Axis, index int, coord float64) Set {
	s := g.Set(axis)
	if s.IsFixed(index) || index < 0 || index >= s.Len() {
		return s
	}

	moved := s.Move(index, coord)
	if axis == models.AxisV {
		g.v = moved
	} else {
		g.h = moved
	}
	g.state = Dirty
	return moved
}

// Set returns the boundary set of axis.
func (g *Grid) Set(axis models.Axis) Set {
	if axis == models.AxisV {
		return g.v
	}
	return g.h
}

func (g *Grid) H() Set       { return g.h }
func (g *Grid) V() Set       { return g.v }
func (g *Grid) State() State { return g.state }

// Rows is always re-derived from the H boundaries.
func (g *Grid) Rows() int { return g.h.Cells() }

// Cols is always re-derived from the V boundaries.
func (g *Grid) Cols() int { return g.v.Cells() }

// NaturalSize returns the image dimensions the grid was built for.
func (g *Grid) NaturalSize() (int, int) { return g.naturalW, g.naturalH }
