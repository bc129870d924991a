package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pinreport/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type seeded struct {
	project models.Project
	plan    models.Plan
	status  models.Status
	pins    []models.Pin
}

func seed(t *testing.T, s *Store) seeded {
	t.Helper()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, models.Project{ID: 42, Name: "Chantier Nord", ProjectNumber: 7})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	alice, err := s.CreateMember(ctx, models.Member{Name: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	plan, err := s.CreatePlan(ctx, models.Plan{ProjectID: project.ID, Name: "RDC", FilePath: "42/rdc.pdf"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	status, err := s.CreateStatus(ctx, models.Status{ProjectID: project.ID, Name: "À faire", Order: 1})
	if err != nil {
		t.Fatalf("CreateStatus: %v", err)
	}
	if _, err := s.CreateCategory(ctx, models.Category{ProjectID: project.ID, Name: "Plomberie", Icon: "P"}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	due := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	var pins []models.Pin
	for i, name := range []string{"Fuite", "Prise", "Fissure"} {
		p := models.Pin{
			ProjectID: project.ID, PlanID: plan.ID, Name: name,
			X: 0.1 * float64(i+1), Y: 0.2, StatusID: &status.ID, Creator: &alice,
		}
		if i == 0 {
			p.DueDate = &due
			p.Assignee = &alice
		}
		created, err := s.CreatePin(ctx, p)
		if err != nil {
			t.Fatalf("CreatePin: %v", err)
		}
		pins = append(pins, created)
	}
	if _, err := s.AddPhoto(ctx, models.Photo{PinID: pins[0].ID, PublicURL: "https://cdn/a.jpg"}); err != nil {
		t.Fatalf("AddPhoto: %v", err)
	}
	return seeded{project: project, plan: plan, status: status, pins: pins}
}

func TestPinNumbersAreSequential(t *testing.T) {
	s := openTestStore(t)
	data := seed(t, s)
	for i, p := range data.pins {
		if p.PinNumber != int64(i+1) {
			t.Errorf("pin %d: number %d", i, p.PinNumber)
		}
	}
}

func TestStatusPaletteDefault(t *testing.T) {
	s := openTestStore(t)
	data := seed(t, s)
	if data.status.Color != statusPalette[0] {
		t.Fatalf("color: got %q", data.status.Color)
	}
}

func TestPinsForReport(t *testing.T) {
	s := openTestStore(t)
	data := seed(t, s)
	ctx := context.Background()

	pins, err := s.PinsForReport(ctx, data.project.ID, []int64{data.pins[2].ID, data.pins[0].ID, 9999})
	if err != nil {
		t.Fatalf("PinsForReport: %v", err)
	}
	if len(pins) != 2 {
		t.Fatalf("got %d pins", len(pins))
	}
	first := pins[0]
	if first.ID != data.pins[0].ID || pins[1].ID != data.pins[2].ID {
		t.Fatalf("order: got %d, %d", first.ID, pins[1].ID)
	}
	if first.Plan == nil || first.Plan.FilePath != "42/rdc.pdf" {
		t.Errorf("plan join: %+v", first.Plan)
	}
	if first.Project == nil || first.Project.ProjectNumber != 7 {
		t.Errorf("project join: %+v", first.Project)
	}
	if first.Creator == nil || first.Creator.Name != "Alice" || first.Assignee == nil {
		t.Errorf("member joins: %+v / %+v", first.Creator, first.Assignee)
	}
	if first.DueDate == nil || !first.DueDate.Equal(time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due date: %v", first.DueDate)
	}
	if len(first.Photos) != 1 || first.Photos[0].PublicURL != "https://cdn/a.jpg" {
		t.Errorf("photos: %+v", first.Photos)
	}
	if pins[1].Assignee != nil || pins[1].DueDate != nil || len(pins[1].Photos) != 0 {
		t.Errorf("optional fields should be empty: %+v", pins[1])
	}
}

func TestPinsForReportScopedToProject(t *testing.T) {
	s := openTestStore(t)
	data := seed(t, s)
	pins, err := s.PinsForReport(context.Background(), data.project.ID+1, []int64{data.pins[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 0 {
		t.Fatalf("pins leaked across projects: %+v", pins)
	}
}

func TestListings(t *testing.T) {
	s := openTestStore(t)
	data := seed(t, s)
	ctx := context.Background()

	pins, err := s.ListPins(ctx, data.project.ID)
	if err != nil || len(pins) != 3 {
		t.Fatalf("ListPins: %d, %v", len(pins), err)
	}
	statuses, err := s.ListStatuses(ctx, data.project.ID)
	if err != nil || len(statuses) != 1 || statuses[0].Name != "À faire" {
		t.Fatalf("ListStatuses: %+v, %v", statuses, err)
	}
	categories, err := s.ListCategories(ctx, data.project.ID)
	if err != nil || len(categories) != 1 || categories[0].Icon != "P" {
		t.Fatalf("ListCategories: %+v, %v", categories, err)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetProject(context.Background(), 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
