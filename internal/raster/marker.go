package raster

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// Marker radii in destination pixels.
const (
	HaloRadius   = 12.0
	DotRadius    = 6.0
	CenterRadius = 2.5
)

// Accent is the marker dot color.
var Accent = color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}

var (
	halo   = color.NRGBA{R: Accent.R, G: Accent.G, B: Accent.B, A: 0x4d}
	center = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// kappa places cubic control points so four curves approximate a circle.
const kappa = 0.5522847498

// DrawMarker paints the halo, dot and center dot at (x, y) on dst.
// Coordinates are relative to dst's bounds origin.
func DrawMarker(dst draw.Image, x, y float64) {
	fillCircle(dst, x, y, HaloRadius, halo)
	fillCircle(dst, x, y, DotRadius, Accent)
	fillCircle(dst, x, y, CenterRadius, center)
}

func fillCircle(dst draw.Image, cx, cy, r float64, c color.Color) {
	b := dst.Bounds()
	if b.Empty() {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	k := kappa * r

	z.MoveTo(f32(cx+r), f32(cy))
	z.CubeTo(f32(cx+r), f32(cy+k), f32(cx+k), f32(cy+r), f32(cx), f32(cy+r))
	z.CubeTo(f32(cx-k), f32(cy+r), f32(cx-r), f32(cy+k), f32(cx-r), f32(cy))
	z.CubeTo(f32(cx-r), f32(cy-k), f32(cx-k), f32(cy-r), f32(cx), f32(cy-r))
	z.CubeTo(f32(cx+k), f32(cy-r), f32(cx+r), f32(cy-k), f32(cx+r), f32(cy))
	z.ClosePath()

	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func f32(v float64) float32 { return float32(v) }
