// Package fixtures loads demo projects from YAML into a writable store.
package fixtures

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pinreport/internal/models"
)

// File is the root of a fixture document.
type File struct {
	Members  []Member  `yaml:"members"`
	Projects []Project `yaml:"projects"`
}

type Member struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type Project struct {
	ID         int64   `yaml:"id"`
	Name       string  `yaml:"name"`
	Number     int64   `yaml:"number"`
	Statuses   []Label `yaml:"statuses"`
	Categories []Label `yaml:"categories"`
	Plans      []Plan  `yaml:"plans"`
}

// Label is a status or a category. Color applies to statuses, Icon to
// categories.
type Label struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Icon  string `yaml:"icon"`
	Order int64  `yaml:"order"`
}

type Plan struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Pins []Pin  `yaml:"pins"`
}

// Pin references its status, category and members by name or email.
type Pin struct {
	Name     string   `yaml:"name"`
	Note     string   `yaml:"note"`
	X        float64  `yaml:"x"`
	Y        float64  `yaml:"y"`
	Status   string   `yaml:"status"`
	Category string   `yaml:"category"`
	Creator  string   `yaml:"creator"`
	Assignee string   `yaml:"assignee"`
	Due      string   `yaml:"due"`
	Photos   []string `yaml:"photos"`
}

// Seeder is the write side of a record store.
type Seeder interface {
	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	CreateMember(ctx context.Context, m models.Member) (models.Member, error)
	CreatePlan(ctx context.Context, p models.Plan) (models.Plan, error)
	CreateStatus(ctx context.Context, st models.Status) (models.Status, error)
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	CreatePin(ctx context.Context, p models.Pin) (models.Pin, error)
	AddPhoto(ctx context.Context, ph models.Photo) (models.Photo, error)
}

// Stats counts what Apply inserted.
type Stats struct {
	Projects int
	Pins     int
	Photos   int
}

// Load parses a fixture file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML, rejecting unknown keys.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse fixtures: %w", err)
	}
	return f, nil
}

// Apply inserts every record of f. Pins are numbered in file order.
func Apply(ctx context.Context, s Seeder, f File) (Stats, error) {
	var stats Stats
	members := map[string]models.Member{}
	for _, m := range f.Members {
		created, err := s.CreateMember(ctx, models.Member{Name: m.Name, Email: m.Email})
		if err != nil {
			return stats, err
		}
		members[m.Email] = created
	}

	for _, fp := range f.Projects {
		project, err := s.CreateProject(ctx, models.Project{ID: fp.ID, Name: fp.Name, ProjectNumber: fp.Number})
		if err != nil {
			return stats, err
		}
		stats.Projects++

		statuses := map[string]int64{}
		for _, l := range fp.Statuses {
			st, err := s.CreateStatus(ctx, models.Status{ProjectID: project.ID, Name: l.Name, Color: l.Color, Order: l.Order})
			if err != nil {
				return stats, err
			}
			statuses[l.Name] = st.ID
		}
		categories := map[string]int64{}
		for _, l := range fp.Categories {
			c, err := s.CreateCategory(ctx, models.Category{ProjectID: project.ID, Name: l.Name, Icon: l.Icon, Order: l.Order})
			if err != nil {
				return stats, err
			}
			categories[l.Name] = c.ID
		}

		for _, fpl := range fp.Plans {
			plan, err := s.CreatePlan(ctx, models.Plan{ProjectID: project.ID, Name: fpl.Name, FilePath: fpl.File})
			if err != nil {
				return stats, err
			}
			for _, fpin := range fpl.Pins {
				pin, err := newPin(project.ID, plan.ID, fpin, statuses, categories, members)
				if err != nil {
					return stats, fmt.Errorf("project %q pin %q: %w", fp.Name, fpin.Name, err)
				}
				if pin, err = s.CreatePin(ctx, pin); err != nil {
					return stats, err
				}
				stats.Pins++
				for _, url := range fpin.Photos {
					if _, err := s.AddPhoto(ctx, models.Photo{PinID: pin.ID, PublicURL: url}); err != nil {
						return stats, err
					}
					stats.Photos++
				}
			}
		}
	}
	return stats, nil
}

func newPin(projectID, planID int64, fp Pin, statuses, categories map[string]int64, members map[string]models.Member) (models.Pin, error) {
	p := models.Pin{ProjectID: projectID, PlanID: planID, Name: fp.Name, Note: fp.Note, X: fp.X, Y: fp.Y}
	if fp.Status != "" {
		id, ok := statuses[fp.Status]
		if !ok {
			return p, fmt.Errorf("unknown status %q", fp.Status)
		}
		p.StatusID = &id
	}
	if fp.Category != "" {
		id, ok := categories[fp.Category]
		if !ok {
			return p, fmt.Errorf("unknown category %q", fp.Category)
		}
		p.CategoryID = &id
	}
	var err error
	if p.Creator, err = member(members, fp.Creator); err != nil {
		return p, err
	}
	if p.Assignee, err = member(members, fp.Assignee); err != nil {
		return p, err
	}
	if fp.Due != "" {
		due, err := time.Parse(time.DateOnly, fp.Due)
		if err != nil {
			return p, fmt.Errorf("due date: %w", err)
		}
		p.DueDate = &due
	}
	return p, nil
}

func member(members map[string]models.Member, email string) (*models.Member, error) {
	if email == "" {
		return nil, nil
	}
	m, ok := members[email]
	if !ok {
		return nil, fmt.Errorf("unknown member %q", email)
	}
	return &m, nil
}
