package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pinreport/internal/geometry"
	"pinreport/internal/raster"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	err := f.fail[url]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(url), nil
}

type fakeRasterizer struct {
	calls atomic.Int32
}

// Rasterize returns a white 1000x1000 surface for a 500x500pt page.
func (r *fakeRasterizer) Rasterize(_ context.Context, _ []byte, page int) (*raster.Page, error) {
	r.calls.Add(1)
	if page != 1 {
		return nil, raster.ErrPageNotFound
	}
	return whitePage(), nil
}

func whitePage() *raster.Page {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return &raster.Page{
		Image:    img,
		Viewport: geometry.Viewport{Width: 500, Height: 500},
		Scale:    raster.RenderScale,
	}
}

func TestRenderCornerPin(t *testing.T) {
	frame := Render(whitePage(), 0.02, 0.02, 200, 200, 2)

	if frame.Crop.X != 0 || frame.Crop.Y != 0 {
		t.Fatalf("crop origin: got (%v,%v), want (0,0)", frame.Crop.X, frame.Crop.Y)
	}
	if b := frame.Image.Bounds(); b.Dx() != 800 || b.Dy() != 800 {
		t.Fatalf("output size: got %v", b)
	}
	if math.Abs(frame.Marker.X-40) > 1e-9 || math.Abs(frame.Marker.Y-40) > 1e-9 {
		t.Fatalf("marker: got %+v, want (40,40)", frame.Marker)
	}
	if c := frame.Image.RGBAAt(44, 40); c.B != raster.Accent.B || c.R != raster.Accent.R {
		t.Errorf("accent dot missing near (40,40): %v", c)
	}
	if c := frame.Image.RGBAAt(400, 400); c != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("geometric center should be untouched, got %v", c)
	}
}

func TestRenderCenteredPin(t *testing.T) {
	frame := Render(whitePage(), 0.5, 0.5, 200, 200, 2)
	if frame.Crop.X != 300 || frame.Crop.Y != 300 {
		t.Fatalf("crop: got %+v", frame.Crop)
	}
	if frame.Marker.X != 400 || frame.Marker.Y != 400 {
		t.Fatalf("marker: got %+v", frame.Marker)
	}
}

func TestRenderPreservesContent(t *testing.T) {
	page := whitePage()
	// Black block at surface (300..320, 300..320) is the top-left of a centered crop.
	for y := 300; y < 320; y++ {
		for x := 300; x < 320; x++ {
			page.Image.Set(x, y, color.Black)
		}
	}
	frame := Render(page, 0.5, 0.5, 200, 200, 2)
	if c := frame.Image.RGBAAt(15, 15); c.R > 0x20 {
		t.Fatalf("expected zoomed block at output (15,15), got %v", c)
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(Render(whitePage(), 0.3, 0.6, 200, 200, 2).Image)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 800 {
		t.Fatalf("width: got %d", img.Bounds().Dx())
	}
}

func TestSnapshotsKeepOrderAndSkipFailures(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]error{"bad": errors.New("unreachable")}}
	rast := &fakeRasterizer{}
	c := New(fetcher, rast, Options{Concurrency: 3}, nil)

	reqs := []Request{
		{PinID: 1, URL: "plan-a", Page: 1, X: 0.1, Y: 0.1, Width: 200, Height: 200, Zoom: 2},
		{PinID: 2, URL: "bad", Page: 1, X: 0.5, Y: 0.5, Width: 200, Height: 200, Zoom: 2},
		{PinID: 3, URL: "plan-a", Page: 1, X: 0.9, Y: 0.9, Width: 200, Height: 200, Zoom: 2},
		{PinID: 4, URL: "plan-b", Page: 2, X: 0.5, Y: 0.5, Width: 200, Height: 200, Zoom: 2},
	}
	results := c.Snapshots(context.Background(), reqs)

	if len(results) != len(reqs) {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.PinID != reqs[i].PinID {
			t.Errorf("result %d: pin %d, want %d", i, res.PinID, reqs[i].PinID)
		}
	}
	if !results[0].OK() || !results[2].OK() {
		t.Errorf("healthy pins should render: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].OK() || results[1].Image != nil {
		t.Errorf("unreachable plan should yield no image")
	}
	if !errors.Is(results[3].Err, raster.ErrPageNotFound) {
		t.Errorf("pin 4: got %v, want ErrPageNotFound", results[3].Err)
	}
	if n := fetcher.calls["plan-a"]; n != 1 {
		t.Errorf("plan-a fetched %d times, want 1", n)
	}
}

func TestSnapshotsTimeout(t *testing.T) {
	fetcher := &fakeFetcher{delay: time.Second}
	c := New(fetcher, &fakeRasterizer{}, Options{Concurrency: 2, Timeout: 20 * time.Millisecond}, nil)

	results := c.Snapshots(context.Background(), []Request{{PinID: 7, URL: "slow", Page: 1, Width: 200, Height: 200, Zoom: 2}})
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", results[0].Err)
	}
}
