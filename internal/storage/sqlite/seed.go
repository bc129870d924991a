package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"pinreport/internal/models"
)

var statusPalette = []string{
	"#2563eb", // blue-600
	"#7c3aed", // violet-600
	"#dc2626", // red-600
	"#059669", // green-600
	"#ea580c", // orange-600
	"#d97706", // amber-600
	"#0ea5e9", // sky-500
}

// CreateProject inserts a project. A zero ID is assigned by the database.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO projects(id, name, project_number) VALUES(?, ?, ?)`,
		optionalID(p.ID), strings.TrimSpace(p.Name), p.ProjectNumber)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Project{}, fmt.Errorf("project id: %w", err)
	}
	return s.GetProject(ctx, id)
}

// CreateMember inserts a project member.
func (s *Store) CreateMember(ctx context.Context, m models.Member) (models.Member, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO members(id, name, email) VALUES(?, ?, ?)`,
		optionalID(m.ID), strings.TrimSpace(m.Name), strings.TrimSpace(m.Email))
	if err != nil {
		return models.Member{}, fmt.Errorf("insert member: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return models.Member{}, fmt.Errorf("member id: %w", err)
	}
	return m, nil
}

// CreatePlan inserts a plan for a project.
func (s *Store) CreatePlan(ctx context.Context, p models.Plan) (models.Plan, error) {
	if strings.TrimSpace(p.FilePath) == "" {
		return models.Plan{}, fmt.Errorf("plan file path must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO plans(id, project_id, name, file_path) VALUES(?, ?, ?, ?)`,
		optionalID(p.ID), p.ProjectID, strings.TrimSpace(p.Name), p.FilePath)
	if err != nil {
		return models.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return models.Plan{}, fmt.Errorf("plan id: %w", err)
	}
	return p, nil
}

// CreateStatus inserts a status. Without a color, one is picked from the
// palette by position.
func (s *Store) CreateStatus(ctx context.Context, st models.Status) (models.Status, error) {
	if st.Color == "" {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statuses WHERE project_id = ?`, st.ProjectID).Scan(&n); err != nil {
			return models.Status{}, fmt.Errorf("count statuses: %w", err)
		}
		st.Color = statusPalette[n%len(statusPalette)]
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO statuses(id, project_id, name, color, sort_order) VALUES(?, ?, ?, ?, ?)`,
		optionalID(st.ID), st.ProjectID, strings.TrimSpace(st.Name), st.Color, st.Order)
	if err != nil {
		return models.Status{}, fmt.Errorf("insert status: %w", err)
	}
	if st.ID, err = res.LastInsertId(); err != nil {
		return models.Status{}, fmt.Errorf("status id: %w", err)
	}
	return st, nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories(id, project_id, name, icon, sort_order) VALUES(?, ?, ?, ?, ?)`,
		optionalID(c.ID), c.ProjectID, strings.TrimSpace(c.Name), c.Icon, c.Order)
	if err != nil {
		return models.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return models.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

// CreatePin inserts a pin. Creator and assignee are taken from their IDs.
// A zero PinNumber takes the next number in the project sequence.
func (s *Store) CreatePin(ctx context.Context, p models.Pin) (models.Pin, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Pin{}, fmt.Errorf("pin name must not be empty")
	}
	if p.PinNumber == 0 {
		n, err := s.nextPinNumber(ctx, p.ProjectID)
		if err != nil {
			return models.Pin{}, err
		}
		p.PinNumber = n
	}

	var creatorID, assigneeID *int64
	if p.Creator != nil {
		creatorID = &p.Creator.ID
	}
	if p.Assignee != nil {
		assigneeID = &p.Assignee.ID
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO pins(id, project_id, plan_id, name, note, x, y, pin_number,
            status_id, category_id, created_by, assigned_to, due_date)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		optionalID(p.ID), p.ProjectID, optionalID(p.PlanID), strings.TrimSpace(p.Name), strings.TrimSpace(p.Note),
		p.X, p.Y, p.PinNumber, p.StatusID, p.CategoryID, creatorID, assigneeID, p.DueDate)
	if err != nil {
		return models.Pin{}, fmt.Errorf("insert pin: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return models.Pin{}, fmt.Errorf("pin id: %w", err)
	}
	s.logger.Debug("pin created", slog.Int64("pin_id", p.ID), slog.Int64("pin_number", p.PinNumber))
	return p, nil
}

// AddPhoto attaches a photo to a pin.
func (s *Store) AddPhoto(ctx context.Context, ph models.Photo) (models.Photo, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO pin_photos(id, pin_id, public_url) VALUES(?, ?, ?)`,
		optionalID(ph.ID), ph.PinID, ph.PublicURL)
	if err != nil {
		return models.Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	if ph.ID, err = res.LastInsertId(); err != nil {
		return models.Photo{}, fmt.Errorf("photo id: %w", err)
	}
	return ph, nil
}

func (s *Store) nextPinNumber(ctx context.Context, projectID int64) (int64, error) {
	var number sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(pin_number) FROM pins WHERE project_id = ?`, projectID).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("select pin number: %w", err)
	}
	if number.Valid {
		return number.Int64 + 1, nil
	}
	return 1, nil
}

// optionalID maps a zero id to NULL so SQLite assigns one.
func optionalID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
