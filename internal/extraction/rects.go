package extraction

import (
	"errors"
	"fmt"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// ErrDegenerateRectangle means a boundary pair produced a cell with no area.
// Valid boundary sets never do; seeing it means an upstream invariant broke.
var ErrDegenerateRectangle = errors.New("degenerate rectangle")

// DegenerateRectangleError carries the offending cell.
type DegenerateRectangleError struct {
	Rect models.Rect
}

func (e *DegenerateRectangleError) Error() string {
	return fmt.Sprintf("degenerate rectangle at row %d col %d: %s", e.Rect.Row, e.Rect.Col, e.Rect)
}

func (e *DegenerateRectangleError) Unwrap() error { return ErrDegenerateRectangle }

// Rectangles returns the row-major cells of the grid formed by the H (row
// edges) and V (column edges) boundary values:
//
//	rect[r][c] = (V[c], H[r], V[c+1], H[r+1])
func Rectangles(h, v []int) ([]models.Rect, error) {
	if len(h) < 2 || len(v) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 boundaries per axis, got %d row and %d column boundaries",
			ErrDegenerateRectangle, len(h), len(v))
	}

	rows, cols := len(h)-1, len(v)-1
	rects := make([]models.Rect, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rect := models.Rect{Row: r, Col: c, X0: v[c], Y0: h[r], X1: v[c+1], Y1: h[r+1]}
			if rect.X1 <= rect.X0 || rect.Y1 <= rect.Y0 {
				return nil, &DegenerateRectangleError{Rect: rect}
			}
			rects = append(rects, rect)
		}
	}
	return rects, nil
}
