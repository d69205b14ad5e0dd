// Package preview draws the current grid over a letterboxed thumbnail of a
// sheet, the same way a front end lays the sheet out on screen.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"

	"github.com/fizic37/Delcampe-sub011/internal/boundary"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/viewport"
)

var background = color.NRGBA{R: 32, G: 32, B: 32, A: 255}

// Render fits src into a containerW x containerH canvas and draws every
// boundary of h and v as a one pixel line in lineColor.
func Render(src image.Image, h, v boundary.Set, containerW, containerH int, lineColor color.Color) (*image.NRGBA, viewport.Bounds, error) {
	nw, nh := src.Bounds().Dx(), src.Bounds().Dy()
	b, err := viewport.ComputeBounds(nw, nh, float64(containerW), float64(containerH))
	if err != nil {
		return nil, b, err
	}
	if h.Extent() != nh || v.Extent() != nw {
		return nil, b, fmt.Errorf("boundaries span %dx%d, image is %dx%d", v.Extent(), h.Extent(), nw, nh)
	}

	canvas := imaging.New(containerW, containerH, background)
	if b.Degenerate() {
		return canvas, b, nil
	}

	rw := max(1, int(math.Round(b.RenderedW)))
	rh := max(1, int(math.Round(b.RenderedH)))
	thumb := imaging.Resize(src, rw, rh, imaging.Box)
	ox, oy := int(math.Round(b.OffsetX)), int(math.Round(b.OffsetY))
	canvas = imaging.Paste(canvas, thumb, image.Pt(ox, oy))

	for _, y := range h.Values() {
		py := pixel(viewport.ToViewport(float64(y), models.AxisH, b), containerH)
		for x := ox; x < ox+rw && x < containerW; x++ {
			canvas.Set(x, py, lineColor)
		}
	}
	for _, x := range v.Values() {
		px := pixel(viewport.ToViewport(float64(x), models.AxisV, b), containerW)
		for y := oy; y < oy+rh && y < containerH; y++ {
			canvas.Set(px, y, lineColor)
		}
	}

	return canvas, b, nil
}

// pixel keeps the far edge line inside the canvas.
func pixel(coord float64, limit int) int {
	p := int(math.Floor(coord))
	if p >= limit {
		p = limit - 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}
