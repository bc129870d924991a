// Package snapshot produces zoomed, marker-annotated crops of plan pages
// around pin locations.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"pinreport/internal/geometry"
	"pinreport/internal/raster"
)

// Fetcher downloads plan files.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Request describes one pin snapshot.
type Request struct {
	PinID int64
	URL   string
	Page  int
	// X and Y are normalized pin coordinates on the page.
	X, Y float64
	// Width and Height are the crop size before render scale.
	Width, Height float64
	Zoom          float64
}

// Result is the outcome for one request. Exactly one of Image and Err is set.
type Result struct {
	PinID int64
	Image []byte
	Err   error
}

// OK reports whether the snapshot was produced.
func (r Result) OK() bool {
	return r.Err == nil && len(r.Image) > 0
}

// Options tune a Composer.
type Options struct {
	// Timeout bounds fetch, rasterization and encoding for a single pin.
	Timeout     time.Duration
	Concurrency int
}

// Composer renders snapshots for batches of pins.
type Composer struct {
	fetcher    Fetcher
	rasterizer raster.Rasterizer
	opts       Options
	logger     *slog.Logger
}

// New constructs a Composer.
func New(fetcher Fetcher, rasterizer raster.Rasterizer, opts Options, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Composer{
		fetcher:    fetcher,
		rasterizer: rasterizer,
		opts:       opts,
		logger:     logger,
	}
}

// Snapshots renders every request concurrently and returns results in
// request order. Per-pin failures are reported in Result.Err and never
// abort the batch. Pages are rasterized once per URL and page number for
// the duration of the call.
func (c *Composer) Snapshots(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	pages := newPageCache(c.fetcher, c.rasterizer)

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = c.snapshot(ctx, pages, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Composer) snapshot(ctx context.Context, pages *pageCache, req Request) Result {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	res := Result{PinID: req.PinID}
	page, err := pages.get(ctx, req.URL, req.Page)
	if err != nil {
		res.Err = fmt.Errorf("pin %d: %w", req.PinID, err)
		c.logger.Warn("snapshot skipped", slog.Int64("pin_id", req.PinID), slog.String("error", err.Error()))
		return res
	}

	frame := Render(page, req.X, req.Y, req.Width, req.Height, req.Zoom)
	data, err := Encode(frame.Image)
	if err != nil {
		res.Err = fmt.Errorf("pin %d: %w", req.PinID, err)
		c.logger.Warn("snapshot encode failed", slog.Int64("pin_id", req.PinID), slog.String("error", err.Error()))
		return res
	}
	res.Image = data
	return res
}

// Frame is a rendered snapshot with the geometry used to produce it.
type Frame struct {
	Image *image.RGBA
	// Crop is the window taken from the page surface, in surface pixels.
	Crop geometry.Rect
	// Marker is the pin position inside Image.
	Marker geometry.Point
}

// Render crops a width x height window around the normalized point (x, y)
// of page, resamples it by zoom and draws the pin marker.
func Render(page *raster.Page, x, y, width, height, zoom float64) Frame {
	if zoom <= 0 {
		zoom = 1
	}
	_, scaled := geometry.Locate(x, y, page.Viewport, page.Scale)
	crop := geometry.Crop(scaled, width, height, page.Scale, page.Width(), page.Height())

	win := crop.Image()
	crop.X, crop.Y = float64(win.Min.X), float64(win.Min.Y)

	// Regions of the window past the page edge stay white.
	bounds := page.Image.Bounds()
	buf := image.NewRGBA(image.Rect(0, 0, win.Dx(), win.Dy()))
	draw.Draw(buf, buf.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(buf, buf.Bounds(), page.Image, win.Min.Add(bounds.Min), draw.Src)

	out := image.NewRGBA(image.Rect(0, 0, int(math.Round(crop.Width*zoom)), int(math.Round(crop.Height*zoom))))
	draw.CatmullRom.Scale(out, out.Bounds(), buf, buf.Bounds(), draw.Src, nil)

	marker := geometry.Local(scaled, crop, zoom)
	raster.DrawMarker(out, marker.X, marker.Y)

	return Frame{Image: out, Crop: crop, Marker: marker}
}

// Encode writes img as PNG.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
