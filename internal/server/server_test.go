package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"pinreport/internal/blob"
	"pinreport/internal/generator"
	"pinreport/internal/models"
	"pinreport/internal/raster"
	"pinreport/internal/snapshot"
	"pinreport/internal/storage/sqlite"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubReports struct {
	pdf    []byte
	err    error
	panics bool
	got    []int64
}

func (s *stubReports) Generate(_ context.Context, _ int64, pinIDs []int64) ([]byte, error) {
	if s.panics {
		panic("nil map")
	}
	s.got = pinIDs
	return s.pdf, s.err
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestReportValidation(t *testing.T) {
	reports := &stubReports{pdf: []byte("%PDF-1.4")}
	h := New(nil, reports, quiet, "").Engine()

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"missing selectedIds", "/api/report?projectId=42", http.StatusBadRequest, "Missing parameters"},
		{"missing projectId", "/api/report?selectedIds=1,2", http.StatusBadRequest, "Missing parameters"},
		{"empty selectedIds", "/api/report?projectId=42&selectedIds=", http.StatusBadRequest, "Missing parameters"},
		{"non numeric project", "/api/report?projectId=abc&selectedIds=1", http.StatusBadRequest, "Invalid parameters"},
		{"non numeric pin", "/api/report?projectId=42&selectedIds=1,x", http.StatusBadRequest, "Invalid parameters"},
		{"only commas", "/api/report?projectId=42&selectedIds=,,", http.StatusBadRequest, "Invalid parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != tt.status || !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("got %d %q, want %d %q", rec.Code, rec.Body.String(), tt.status, tt.body)
			}
			if strings.HasPrefix(rec.Body.String(), "%PDF") {
				t.Fatal("partial output on validation error")
			}
		})
	}
}

func TestReportSuccessHeaders(t *testing.T) {
	reports := &stubReports{pdf: []byte("%PDF-1.4 body")}
	rec := get(t, New(nil, reports, quiet, "").Engine(), "/api/report?projectId=42&selectedIds=3,%201,3,")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="report.pdf"` {
		t.Errorf("content disposition %q", cd)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if len(reports.got) != 2 || reports.got[0] != 3 || reports.got[1] != 1 {
		t.Errorf("pin ids: %v", reports.got)
	}
}

func TestReportErrors(t *testing.T) {
	tests := []struct {
		name    string
		reports *stubReports
		status  int
		body    string
	}{
		{"no pins", &stubReports{err: generator.ErrNoPins}, http.StatusNotFound, "No pins found"},
		{"store failure", &stubReports{err: errors.New("load pins: connection refused")}, http.StatusInternalServerError, "PDF generation failed"},
		{"panic", &stubReports{panics: true}, http.StatusInternalServerError, "PDF generation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, New(nil, tt.reports, quiet, "").Engine(), "/api/report?projectId=42&selectedIds=1")
			if rec.Code != tt.status || rec.Body.String() != tt.body {
				t.Fatalf("got %d %q", rec.Code, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "connection refused") {
				t.Fatal("internal error leaked to client")
			}
		})
	}
}

func planPDF(t *testing.T) []byte {
	t.Helper()
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: 500, Ht: 500}})
	pdf.AddPage()
	pdf.SetFillColor(200, 200, 200)
	pdf.Rect(100, 100, 300, 300, "F")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newPipeline wires the real report pipeline over a seeded SQLite store and
// a local object server.
func newPipeline(t *testing.T) (*sqlite.Store, *httptest.Server, []models.Pin) {
	t.Helper()
	plan := planPDF(t)
	objects := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/rdc.pdf") {
			_, _ = w.Write(plan)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(objects.Close)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "e2e.db"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	project, err := store.CreateProject(ctx, models.Project{ID: 42, Name: "Chantier Nord", ProjectNumber: 7})
	if err != nil {
		t.Fatal(err)
	}
	good, err := store.CreatePlan(ctx, models.Plan{ProjectID: project.ID, Name: "RDC", FilePath: "42/rdc.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	gone, err := store.CreatePlan(ctx, models.Plan{ProjectID: project.ID, Name: "R+1", FilePath: "42/missing.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	status, err := store.CreateStatus(ctx, models.Status{ProjectID: project.ID, Name: "À faire"})
	if err != nil {
		t.Fatal(err)
	}

	var pins []models.Pin
	for i, planID := range []int64{good.ID, gone.ID, good.ID} {
		p, err := store.CreatePin(ctx, models.Pin{
			ProjectID: project.ID, PlanID: planID, Name: "Pin", X: 0.02 + 0.3*float64(i), Y: 0.5, StatusID: &status.ID,
		})
		if err != nil {
			t.Fatal(err)
		}
		pins = append(pins, p)
	}
	return store, objects, pins
}

func TestReportEndToEnd(t *testing.T) {
	store, objects, pins := newPipeline(t)
	fetcher := blob.NewFetcher(5*time.Second, 10<<20, quiet)
	composer := snapshot.New(fetcher, raster.NewFitz(), snapshot.Options{Timeout: 10 * time.Second, Concurrency: 2}, quiet)
	gen := generator.New(store, composer, fetcher, blob.NewResolver(objects.URL), generator.Options{
		Company: "ACME", PlanBucket: "plans", CropWidth: 200, CropHeight: 200, Zoom: 2,
	}, quiet)
	h := New(store, gen, quiet, "").Engine()

	ids := []string{}
	for _, p := range pins {
		ids = append(ids, strconv.FormatInt(p.ID, 10))
	}
	rec := get(t, h, "/api/report?projectId=42&selectedIds="+strings.Join(ids, ","))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", body[:min(len(body), 16)])
	}
	// Pins 1 and 3 sit on the reachable plan; pin 2's plan is a 404 and its
	// section is rendered without a snapshot.
	if n := bytes.Count(body, []byte("/Subtype /Image")); n != 2 {
		t.Errorf("embedded snapshots: got %d, want 2", n)
	}
}

func TestListEndpoints(t *testing.T) {
	store, _, pins := newPipeline(t)
	h := New(store, &stubReports{}, quiet, "").Engine()

	rec := get(t, h, "/api/projects/42/pins")
	if rec.Code != http.StatusOK {
		t.Fatalf("pins status %d", rec.Code)
	}
	var list struct {
		Pins []pinSummary `json:"pins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Pins) != len(pins) || list.Pins[0].PinNumber != 1 || list.Pins[1].PlanName != "R+1" {
		t.Errorf("pins: %+v", list.Pins)
	}

	if rec := get(t, h, "/api/projects/42"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Chantier Nord") {
		t.Errorf("project: %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/api/projects/7"); rec.Code != http.StatusNotFound {
		t.Errorf("missing project: %d", rec.Code)
	}
	if rec := get(t, h, "/api/projects/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d", rec.Code)
	}
	if rec := get(t, h, "/api/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	h := New(nil, &stubReports{}, quiet, "").Engine()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id: %q", got)
	}
}
