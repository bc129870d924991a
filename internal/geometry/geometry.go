// Package geometry maps normalized plan coordinates to raster pixels and
// resolves crop windows around them.
package geometry

import (
	"image"
	"math"
)

// Point is a position in pixel space.
type Point struct {
	X, Y float64
}

// Viewport is the size of a page at scale 1.
type Viewport struct {
	Width, Height float64
}

// Locate converts normalized coordinates to absolute pixels at scale 1 and
// at the given render scale. Out-of-range input is not rejected; the crop
// resolver clamps whatever falls outside the surface.
func Locate(x, y float64, vp Viewport, renderScale float64) (abs, scaled Point) {
	abs = Point{X: x * vp.Width, Y: y * vp.Height}
	scaled = Point{X: abs.X * renderScale, Y: abs.Y * renderScale}
	return abs, scaled
}

// Rect is a crop rectangle in surface pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Image returns the integer rectangle covering r, origin rounded down.
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Floor(r.X))
	y0 := int(math.Floor(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
}

// Crop returns a width x height window (pre-scale units) centered on target
// and clamped to a surface of surfaceW x surfaceH pixels. When the window is
// larger than the surface on an axis, the origin on that axis collapses to 0.
func Crop(target Point, width, height, renderScale, surfaceW, surfaceH float64) Rect {
	cw := width * renderScale
	ch := height * renderScale
	return Rect{
		X:      clamp(target.X-cw/2, surfaceW-cw),
		Y:      clamp(target.Y-ch/2, surfaceH-ch),
		Width:  cw,
		Height: ch,
	}
}

func clamp(v, upper float64) float64 {
	if v > upper {
		v = upper
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Local translates a surface point into the coordinate space of a crop
// that was resampled by zoom.
func Local(p Point, crop Rect, zoom float64) Point {
	return Point{X: (p.X - crop.X) * zoom, Y: (p.Y - crop.Y) * zoom}
}
