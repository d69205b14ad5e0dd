// Package viewport maps between original image pixels and a "contain"-scaled
// on-screen container.
//
// The image is scaled by min(containerW/naturalW, containerH/naturalH) and
// centered on the axis that does not limit the scale. All functions are pure;
// a Bounds value must be recomputed whenever the container changes size, and
// the same Bounds must be used for both directions of a round trip.
package viewport

import (
	"errors"
	"fmt"
	"math"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

// ErrInvalidDimension is returned for a zero or negative natural image size.
var ErrInvalidDimension = errors.New("invalid dimension")

// Bounds describes where the scaled image sits inside its container.
type Bounds struct {
	NaturalW   int     `json:"natural_w"`
	NaturalH   int     `json:"natural_h"`
	ContainerW float64 `json:"container_w"`
	ContainerH float64 `json:"container_h"`
	OffsetX    float64 `json:"offset_x"`
	OffsetY    float64 `json:"offset_y"`
	RenderedW  float64 `json:"rendered_w"`
	RenderedH  float64 `json:"rendered_h"`
}

// ComputeBounds returns the contain-scaled placement of a naturalW x naturalH
// image inside a containerW x containerH box.
//
// A container collapsed to zero (or less) on either axis yields a zero scale:
// both rendered dimensions are 0 and every coordinate maps to the centered
// offset. That case is degenerate, not an error.
func ComputeBounds(naturalW, naturalH int, containerW, containerH float64) (Bounds, error) {
	if naturalW <= 0 || naturalH <= 0 {
		return Bounds{}, fmt.Errorf("%w: natural size %dx%d", ErrInvalidDimension, naturalW, naturalH)
	}

	b := Bounds{
		NaturalW:   naturalW,
		NaturalH:   naturalH,
		ContainerW: containerW,
		ContainerH: containerH,
	}

	cw := math.Max(containerW, 0)
	ch := math.Max(containerH, 0)
	if cw == 0 || ch == 0 {
		b.OffsetX = cw / 2
		b.OffsetY = ch / 2
		return b, nil
	}

	scaleX := cw / float64(naturalW)
	scaleY := ch / float64(naturalH)

	if scaleX <= scaleY {
		// Width limits: fill horizontally, letterbox vertically.
		b.RenderedW = cw
		b.RenderedH = float64(naturalH) * scaleX
		b.OffsetY = (ch - b.RenderedH) / 2
	} else {
		// Height limits: fill vertically, pillarbox horizontally.
		b.RenderedH = ch
		b.RenderedW = float64(naturalW) * scaleY
		b.OffsetX = (cw - b.RenderedW) / 2
	}

	return b, nil
}

// Scale returns the factor applied to original pixels.
func (b Bounds) Scale() float64 {
	if b.NaturalW <= 0 {
		return 0
	}
	return b.RenderedW / float64(b.NaturalW)
}

// Degenerate reports whether the container collapsed and nothing is rendered.
func (b Bounds) Degenerate() bool {
	return b.RenderedW == 0 || b.RenderedH == 0
}

// State returns the ViewportState for these bounds.
func (b Bounds) State() models.ViewportState {
	return models.ViewportState{
		DisplayW: b.ContainerW,
		DisplayH: b.ContainerH,
		NaturalW: b.NaturalW,
		NaturalH: b.NaturalH,
	}
}

// axisParams returns (offset, rendered, natural) for one axis. V boundaries
// are x offsets, H boundaries are y offsets.
func (b Bounds) axisParams(axis models.Axis) (float64, float64, float64) {
	if axis == models.AxisV {
		return b.OffsetX, b.RenderedW, float64(b.NaturalW)
	}
	return b.OffsetY, b.RenderedH, float64(b.NaturalH)
}

// ToViewport converts an original pixel coordinate on axis to a container
// coordinate.
func ToViewport(coord float64, axis models.Axis, b Bounds) float64 {
	offset, rendered, natural := b.axisParams(axis)
	if natural <= 0 || rendered <= 0 {
		return offset
	}
	return offset + (coord/natural)*rendered
}

// ToOriginal converts a container coordinate on axis back to original pixel
// space. With a collapsed container there is no inverse and 0 is returned.
func ToOriginal(coord float64, axis models.Axis, b Bounds) float64 {
	offset, rendered, natural := b.axisParams(axis)
	if rendered <= 0 {
		return 0
	}
	return ((coord - offset) / rendered) * natural
}

// Matches reports whether b was computed for the given image and container.
// Callers use it to refuse conversions through stale bounds.
func (b Bounds) Matches(naturalW, naturalH int, containerW, containerH float64) bool {
	return b.NaturalW == naturalW && b.NaturalH == naturalH &&
		b.ContainerW == containerW && b.ContainerH == containerH
}
