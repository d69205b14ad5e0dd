package boundary

import (
	"reflect"
	"testing"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

func TestNewGrid(t *testing.T) {
	g, err := NewGrid(1000, 1000, 2, 3)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	if !reflect.DeepEqual(g.H().Values(), []int{0, 500, 1000}) {
		t.Errorf("H: got %v", g.H().Values())
	}
	if !reflect.DeepEqual(g.V().Values(), []int{0, 333, 667, 1000}) {
		t.Errorf("V: got %v", g.V().Values())
	}
	if g.Rows() != 2 || g.Cols() != 3 {
		t.Errorf("Expected 2x3, got %dx%d", g.Rows(), g.Cols())
	}
	if g.State() != Clean {
		t.Errorf("Expected clean, got %s", g.State())
	}
}

func TestGrid_MoveCollapseRederivesRows(t *testing.T) {
	g, _ := NewGrid(1000, 1000, 2, 3)

	g.Move(models.AxisH, 1, 1000)

	if g.Rows() != 1 {
		t.Errorf("Expected rows to collapse to 1, got %d", g.Rows())
	}
	if g.State() != Dirty {
		t.Errorf("Expected dirty, got %s", g.State())
	}
}

func TestGrid_MoveFixedEdgeKeepsState(t *testing.T) {
	g, _ := NewGrid(1000, 1000, 2, 2)

	g.Move(models.AxisV, 0, 50)
	g.Move(models.AxisV, 2, 50)

	if g.State() != Clean {
		t.Errorf("moving a fixed edge should not dirty the grid, got %s", g.State())
	}
}

func TestGrid_SetGridDimensions(t *testing.T) {
	t.Run("clean grid always resets", func(t *testing.T) {
		g, _ := NewGrid(900, 600, 3, 3)
		if err := g.SetGridDimensions(3, 3); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(g.H().Values(), []int{0, 200, 400, 600}) {
			t.Errorf("H: got %v", g.H().Values())
		}
	})

	t.Run("dirty grid with matching counts keeps edits", func(t *testing.T) {
		g, _ := NewGrid(900, 600, 3, 3)
		g.Move(models.AxisH, 1, 150)

		if err := g.SetGridDimensions(3, 3); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(g.H().Values(), []int{0, 150, 400, 600}) {
			t.Errorf("manual edit lost: %v", g.H().Values())
		}
		if g.State() != Clean {
			t.Errorf("Expected clean after SetGridDimensions, got %s", g.State())
		}
	})

	t.Run("dirty grid with different count resets that axis only", func(t *testing.T) {
		g, _ := NewGrid(900, 600, 3, 3)
		g.Move(models.AxisH, 1, 150)
		g.Move(models.AxisV, 1, 250)

		if err := g.SetGridDimensions(2, 3); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(g.H().Values(), []int{0, 300, 600}) {
			t.Errorf("H: got %v", g.H().Values())
		}
		if !reflect.DeepEqual(g.V().Values(), []int{0, 250, 600, 900}) {
			t.Errorf("V edit should be kept: %v", g.V().Values())
		}
	})

	t.Run("invalid count", func(t *testing.T) {
		g, _ := NewGrid(900, 600, 3, 3)
		if err := g.SetGridDimensions(0, 3); err == nil {
			t.Error("Expected error for zero rows")
		}
	})
}

func TestGrid_InitFromDetectorCleans(t *testing.T) {
	g, _ := NewGrid(800, 600, 2, 2)
	g.Move(models.AxisH, 1, 100)

	if err := g.InitFromDetector([]float64{200, 400}, nil); err != nil {
		t.Fatal(err)
	}
	if g.State() != Clean {
		t.Errorf("Expected clean, got %s", g.State())
	}
	if g.Rows() != 3 || g.Cols() != 1 {
		t.Errorf("Expected 3x1, got %dx%d", g.Rows(), g.Cols())
	}
}

func TestRestoreGrid(t *testing.T) {
	t.Run("even split restores clean", func(t *testing.T) {
		g, err := RestoreGrid(1000, 1000, []int{0, 500, 1000}, []int{0, 333, 667, 1000})
		if err != nil {
			t.Fatal(err)
		}
		if g.State() != Clean {
			t.Errorf("Expected clean, got %s", g.State())
		}
	})

	t.Run("hand edits restore dirty", func(t *testing.T) {
		g, err := RestoreGrid(1000, 1000, []int{0, 420, 1000}, []int{0, 1000})
		if err != nil {
			t.Fatal(err)
		}
		if g.State() != Dirty {
			t.Errorf("Expected dirty, got %s", g.State())
		}
		if err := g.SetGridDimensions(2, 1); err != nil {
			t.Fatal(err)
		}
		if g.H().At(1) != 420 {
			t.Errorf("restored edit lost, got %v", g.H().Values())
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		if _, err := RestoreGrid(1000, 1000, []int{0, 1000, 500}, []int{0, 1000}); err == nil {
			t.Error("Expected error for unsorted values")
		}
	})
}
