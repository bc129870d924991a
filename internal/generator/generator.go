// Package generator runs the report pipeline: load records, render pin
// snapshots and photos, compose the document and serialize it to PDF.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pinreport/internal/blob"
	"pinreport/internal/models"
	"pinreport/internal/report"
	"pinreport/internal/snapshot"
)

// ErrNoPins is returned when none of the selected pins exist in the project.
var ErrNoPins = errors.New("no pins found")

// RecordStore loads the records a report is built from.
type RecordStore interface {
	PinsForReport(ctx context.Context, projectID int64, pinIDs []int64) ([]models.Pin, error)
	ListCategories(ctx context.Context, projectID int64) ([]models.Category, error)
	ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error)
	GetProject(ctx context.Context, projectID int64) (models.Project, error)
}

// Snapshotter renders pin snapshots in request order.
type Snapshotter interface {
	Snapshots(ctx context.Context, reqs []snapshot.Request) []snapshot.Result
}

// Fetcher downloads public objects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver maps stored object paths to public URLs.
type Resolver interface {
	PublicURL(bucket, path string) string
}

// Options fix the snapshot parameters and document labels.
type Options struct {
	Company    string
	PlanBucket string
	Page       int
	CropWidth  float64
	CropHeight float64
	Zoom       float64
	// PhotoConcurrency bounds parallel photo downloads.
	PhotoConcurrency int
}

// Generator builds reports. It holds no per-request state.
type Generator struct {
	store     RecordStore
	snapshots Snapshotter
	fetcher   Fetcher
	resolver  Resolver
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Generator.
func New(store RecordStore, snapshots Snapshotter, fetcher Fetcher, resolver Resolver, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PhotoConcurrency <= 0 {
		opts.PhotoConcurrency = 4
	}
	return &Generator{
		store:     store,
		snapshots: snapshots,
		fetcher:   fetcher,
		resolver:  resolver,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate returns the PDF report for the selected pins of a project.
func (g *Generator) Generate(ctx context.Context, projectID int64, pinIDs []int64) ([]byte, error) {
	doc, err := g.Document(ctx, projectID, pinIDs)
	if err != nil {
		return nil, err
	}
	return report.Render(doc)
}

// Document loads records and assembles the report structure. Missing
// snapshots and photos are dropped; record store failures are returned.
func (g *Generator) Document(ctx context.Context, projectID int64, pinIDs []int64) (report.Document, error) {
	in, err := g.load(ctx, projectID, pinIDs)
	if err != nil {
		return report.Document{}, err
	}
	return report.Build(in), nil
}

func (g *Generator) load(ctx context.Context, projectID int64, pinIDs []int64) (report.Input, error) {
	pins, err := g.store.PinsForReport(ctx, projectID, pinIDs)
	if err != nil {
		return report.Input{}, fmt.Errorf("load pins: %w", err)
	}
	if len(pins) == 0 {
		return report.Input{}, ErrNoPins
	}

	in := report.Input{
		Company:     g.opts.Company,
		GeneratedAt: g.now(),
	}

	records, rctx := errgroup.WithContext(ctx)
	records.Go(func() (err error) {
		in.Categories, err = g.store.ListCategories(rctx, projectID)
		return wrap("load categories", err)
	})
	records.Go(func() (err error) {
		in.Statuses, err = g.store.ListStatuses(rctx, projectID)
		return wrap("load statuses", err)
	})
	records.Go(func() (err error) {
		in.Project, err = g.store.GetProject(rctx, projectID)
		return wrap("load project", err)
	})
	if err := records.Wait(); err != nil {
		return report.Input{}, err
	}

	var (
		snaps  [][]byte
		photos [][]report.Image
		media  errgroup.Group
	)
	media.Go(func() error {
		snaps = g.renderSnapshots(ctx, pins)
		return nil
	})
	media.Go(func() error {
		photos = g.fetchPhotos(ctx, pins)
		return nil
	})
	_ = media.Wait()

	in.Pins = make([]report.Pin, len(pins))
	for i, p := range pins {
		view := report.NewPin(p)
		view.Snapshot = snaps[i]
		view.Photos = photos[i]
		in.Pins[i] = view
	}
	return in, nil
}

// renderSnapshots returns one PNG per pin, nil where it could not be made.
func (g *Generator) renderSnapshots(ctx context.Context, pins []models.Pin) [][]byte {
	out := make([][]byte, len(pins))
	var (
		reqs  []snapshot.Request
		index []int
	)
	for i, p := range pins {
		if p.Plan == nil || p.Plan.FilePath == "" {
			g.logger.Warn("pin has no plan", slog.Int64("pin_id", p.ID))
			continue
		}
		reqs = append(reqs, snapshot.Request{
			PinID:  p.ID,
			URL:    g.resolver.PublicURL(g.opts.PlanBucket, p.Plan.FilePath),
			Page:   g.opts.Page,
			X:      p.X,
			Y:      p.Y,
			Width:  g.opts.CropWidth,
			Height: g.opts.CropHeight,
			Zoom:   g.opts.Zoom,
		})
		index = append(index, i)
	}
	if len(reqs) == 0 {
		return out
	}

	for j, res := range g.snapshots.Snapshots(ctx, reqs) {
		if res.OK() {
			out[index[j]] = res.Image
		}
	}
	return out
}

// fetchPhotos downloads and normalizes every photo. Failed photos are left
// out of their pin's strip.
func (g *Generator) fetchPhotos(ctx context.Context, pins []models.Pin) [][]report.Image {
	type job struct{ pin, photo int }
	fetched := make([][]*report.Image, len(pins))
	var jobs []job
	for i, p := range pins {
		fetched[i] = make([]*report.Image, len(p.Photos))
		for j := range p.Photos {
			jobs = append(jobs, job{pin: i, photo: j})
		}
	}

	var eg errgroup.Group
	eg.SetLimit(g.opts.PhotoConcurrency)
	for _, jb := range jobs {
		eg.Go(func() error {
			photo := pins[jb.pin].Photos[jb.photo]
			data, err := g.fetcher.Fetch(ctx, photo.PublicURL)
			if err == nil {
				var typ string
				if data, typ, err = blob.NormalizeImage(data); err == nil {
					fetched[jb.pin][jb.photo] = &report.Image{Data: data, Type: typ}
					return nil
				}
			}
			g.logger.Warn("photo skipped", slog.Int64("pin_id", photo.PinID), slog.Int64("photo_id", photo.ID), slog.String("error", err.Error()))
			return nil
		})
	}
	_ = eg.Wait()

	out := make([][]report.Image, len(pins))
	for i, imgs := range fetched {
		for _, img := range imgs {
			if img != nil {
				out[i] = append(out[i], *img)
			}
		}
	}
	return out
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
