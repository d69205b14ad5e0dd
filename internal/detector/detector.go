// Package detector wraps the grid-line detector. Detection is best effort:
// an empty result is valid and makes the caller fall back to an even grid.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"sort"
	"strings"
)

// Lines are internal grid lines in original pixel coordinates.
type Lines struct {
	H []float64 `json:"h_lines"`
	V []float64 `json:"v_lines"`
}

// Empty reports whether neither axis has a line.
func (l Lines) Empty() bool {
	return len(l.H) == 0 && len(l.V) == 0
}

// Detector finds internal grid lines of a sheet.
type Detector interface {
	Detect(ctx context.Context, imagePath string) (Lines, error)
}

// None never detects anything.
type None struct{}

func (None) Detect(ctx context.Context, imagePath string) (Lines, error) {
	return Lines{}, nil
}

// Command runs an external program with the image path as its last
// argument and reads a JSON object from its stdout.
type Command struct {
	Path string
	Args []string
}

// NewCommand splits a command line on whitespace. An empty line yields nil.
func NewCommand(line string) *Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	return &Command{Path: fields[0], Args: fields[1:]}
}

// commandOutput accepts both key styles the detector scripts print.
type commandOutput struct {
	HLines    []float64 `json:"h_lines"`
	VLines    []float64 `json:"v_lines"`
	HInternal []float64 `json:"h_boundaries_internal"`
	VInternal []float64 `json:"v_boundaries_internal"`
}

func (c *Command) Detect(ctx context.Context, imagePath string) (Lines, error) {
	args := append(append([]string(nil), c.Args...), imagePath)
	cmd := exec.CommandContext(ctx, c.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Lines{}, fmt.Errorf("detector %s failed: %w: %s", c.Path, err, strings.TrimSpace(stderr.String()))
	}

	var out commandOutput
	if err := json.Unmarshal(lastJSONLine(stdout.Bytes()), &out); err != nil {
		return Lines{}, fmt.Errorf("failed to parse detector output: %w", err)
	}

	lines := Lines{H: out.HLines, V: out.VLines}
	if len(lines.H) == 0 {
		lines.H = out.HInternal
	}
	if len(lines.V) == 0 {
		lines.V = out.VInternal
	}

	slog.Debug("Detector finished", "image", imagePath, "h", len(lines.H), "v", len(lines.V))
	return lines, nil
}

// lastJSONLine skips debug chatter printed before the result object.
func lastJSONLine(b []byte) []byte {
	rows := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	for i := len(rows) - 1; i >= 0; i-- {
		row := bytes.TrimSpace(rows[i])
		if len(row) > 0 && row[0] == '{' {
			return row
		}
	}
	return b
}

// Clean drops lines within edgeMargin*extent of either edge and lines
// closer than minDistance to the previously kept line. The result is sorted.
func Clean(lines []float64, extent int, minDistance float64, edgeMargin float64) []float64 {
	if extent <= 0 {
		return nil
	}
	lo := edgeMargin * float64(extent)
	hi := float64(extent) - lo

	sorted := make([]float64, 0, len(lines))
	for _, l := range lines {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			continue
		}
		if l <= lo || l >= hi {
			continue
		}
		sorted = append(sorted, l)
	}
	sort.Float64s(sorted)

	var kept []float64
	for _, l := range sorted {
		if len(kept) > 0 && l-kept[len(kept)-1] < minDistance {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// Cleaner applies Clean to both axes with distances relative to the extent.
type Cleaner struct {
	// MinDistance is a fraction of the axis extent.
	MinDistance float64
	EdgeMargin  float64
}

// Apply cleans l for a sheet of naturalW x naturalH pixels.
func (c Cleaner) Apply(l Lines, naturalW, naturalH int) Lines {
	return Lines{
		H: Clean(l.H, naturalH, c.MinDistance*float64(naturalH), c.EdgeMargin),
		V: Clean(l.V, naturalW, c.MinDistance*float64(naturalW), c.EdgeMargin),
	}
}
