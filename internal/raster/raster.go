// Package raster renders PDF plan pages to pixel surfaces and draws pin
// markers onto them.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"pinreport/internal/geometry"
)

// RenderScale is the fixed multiplier applied when rasterizing a page,
// independent of the zoom requested for a snapshot.
const RenderScale = 2.0

const pointsPerInch = 72.0

var (
	// ErrLoad is returned when the PDF cannot be opened or parsed.
	ErrLoad = errors.New("pdf load failed")
	// ErrPageNotFound is returned for page numbers outside the document.
	ErrPageNotFound = errors.New("page not found")
)

// Page is a rasterized PDF page.
type Page struct {
	// Image holds the page rendered at Scale.
	Image *image.RGBA
	// Viewport is the page size at scale 1, in PDF points.
	Viewport geometry.Viewport
	Scale    float64
}

// Width returns the surface width in pixels.
func (p *Page) Width() float64 { return float64(p.Image.Bounds().Dx()) }

// Height returns the surface height in pixels.
func (p *Page) Height() float64 { return float64(p.Image.Bounds().Dy()) }

// Rasterizer turns PDF bytes into a rendered page.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, page int) (*Page, error)
}

// Fitz rasterizes pages with MuPDF.
type Fitz struct{}

// NewFitz returns a MuPDF backed rasterizer.
func NewFitz() *Fitz {
	return &Fitz{}
}

// Rasterize renders the 1-based page of pdf at RenderScale.
func (f *Fitz) Rasterize(ctx context.Context, pdf []byte, page int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageNotFound, page, doc.NumPage())
	}
	idx := page - 1

	bound, err := doc.Bound(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: bound page %d: %v", ErrLoad, page, err)
	}

	img, err := doc.ImageDPI(idx, pointsPerInch*RenderScale)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %v", ErrLoad, page, err)
	}

	return &Page{
		Image: img,
		Viewport: geometry.Viewport{
			Width:  float64(bound.Dx()),
			Height: float64(bound.Dy()),
		},
		Scale: RenderScale,
	}, nil
}
