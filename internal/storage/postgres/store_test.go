package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"pinreport/internal/models"
)

// The pool is pinned to one connection so temporary tables shadow any
// real schema for the duration of the test.
const fixtureSQL = `
create temp table projects (id bigint primary key, name text not null, project_number bigint, created_at timestamptz not null default now());
create temp table members (id bigint primary key, name text, email text);
create temp table plans (id bigint primary key, project_id bigint not null, name text not null, file_path text not null);
create temp table statuses (id bigint primary key, project_id bigint not null, name text not null, color text, "order" bigint);
create temp table categories (id bigint primary key, project_id bigint not null, name text not null, icon text, "order" bigint);
create temp table pins (id bigint primary key, project_id bigint not null, plan_id bigint, name text not null, note text,
	x double precision not null, y double precision not null, pin_number bigint not null, status_id bigint, category_id bigint,
	created_by bigint, assigned_to bigint, due_date date, created_at timestamptz not null default now());
create temp table pin_photos (id bigint primary key, pin_id bigint not null, public_url text not null);

insert into projects(id, name, project_number) values (42, 'Chantier', 7), (43, 'Other', 8);
insert into members(id, name, email) values (1, 'Alice', 'alice@example.com');
insert into plans(id, project_id, name, file_path) values (5, 42, 'RDC', '42/rdc.pdf');
insert into statuses(id, project_id, name, color, "order") values (10, 42, 'Done', '#16a34a', 2), (11, 42, 'Todo', '#dc2626', 1);
insert into categories(id, project_id, name, icon, "order") values (20, 42, 'Plomberie', 'P', 1);
insert into pins(id, project_id, plan_id, name, note, x, y, pin_number, status_id, category_id, created_by, assigned_to, due_date) values
	(1, 42, 5, 'Fuite', 'sous evier', 0.1, 0.2, 1, 10, 20, 1, 1, '2026-11-03'),
	(2, 42, 5, 'Prise', null, 0.3, 0.4, 2, 11, null, 1, null, null),
	(3, 43, null, 'Ailleurs', null, 0.5, 0.5, 1, null, null, null, null, null);
insert into pin_photos(id, pin_id, public_url) values (1, 1, 'https://cdn/a.jpg'), (2, 1, 'https://cdn/b.jpg');
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PINREPORT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PINREPORT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, 1, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.pool.Exec(ctx, fixtureSQL); err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	return s
}

func TestPinsForReport(t *testing.T) {
	s := openTestStore(t)
	pins, err := s.PinsForReport(context.Background(), 42, []int64{2, 1, 3})
	if err != nil {
		t.Fatalf("PinsForReport: %v", err)
	}
	if len(pins) != 2 || pins[0].ID != 1 || pins[1].ID != 2 {
		t.Fatalf("got %+v", pins)
	}
	p := pins[0]
	if p.Plan == nil || p.Plan.FilePath != "42/rdc.pdf" || p.Project.ProjectNumber != 7 {
		t.Errorf("joins: plan %+v project %+v", p.Plan, p.Project)
	}
	if p.DueDate == nil || p.DueDate.Format("2006-01-02") != "2026-11-03" {
		t.Errorf("due date: %v", p.DueDate)
	}
	if len(p.Photos) != 2 {
		t.Errorf("photos: %+v", p.Photos)
	}
	if pins[1].CategoryID != nil || pins[1].Assignee != nil || pins[1].Note != "" {
		t.Errorf("nullable fields: %+v", pins[1])
	}
}

func TestLabelsAndProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	statuses, err := s.ListStatuses(ctx, 42)
	if err != nil || len(statuses) != 2 || statuses[0].Name != "Todo" {
		t.Fatalf("ListStatuses: %+v, %v", statuses, err)
	}
	categories, err := s.ListCategories(ctx, 42)
	if err != nil || len(categories) != 1 {
		t.Fatalf("ListCategories: %+v, %v", categories, err)
	}
	if _, err := s.GetProject(ctx, 999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetProject missing: %v", err)
	}
	all, err := s.ListPins(ctx, 42)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListPins: %d, %v", len(all), err)
	}
}
