package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"pinreport/internal/models"
)

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            project_number INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS plans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            file_path TEXT NOT NULL,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS statuses (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            color TEXT NOT NULL DEFAULT '#666',
            sort_order INTEGER NOT NULL DEFAULT 0,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            icon TEXT NOT NULL DEFAULT '',
            sort_order INTEGER NOT NULL DEFAULT 0,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS pins (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            plan_id INTEGER,
            name TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            x REAL NOT NULL,
            y REAL NOT NULL,
            pin_number INTEGER NOT NULL,
            status_id INTEGER,
            category_id INTEGER,
            created_by INTEGER,
            assigned_to INTEGER,
            due_date DATE,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
            FOREIGN KEY(plan_id) REFERENCES plans(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS pin_photos (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            pin_id INTEGER NOT NULL,
            public_url TEXT NOT NULL,
            FOREIGN KEY(pin_id) REFERENCES pins(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_pins_project ON pins(project_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pins_project_number ON pins(project_id, pin_number);`,
		`CREATE INDEX IF NOT EXISTS idx_pin_photos_pin ON pin_photos(pin_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, project_number, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.ProjectNumber, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListStatuses returns the statuses of a project in display order.
func (s *Store) ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, color, sort_order
        FROM statuses WHERE project_id = ? ORDER BY sort_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.Status
	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Color, &st.Order); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// ListCategories returns the categories of a project in display order.
func (s *Store) ListCategories(ctx context.Context, projectID int64) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, name, icon, sort_order
        FROM categories WHERE project_id = ? ORDER BY sort_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Icon, &c.Order); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const pinColumns = `SELECT p.id, p.project_id, p.plan_id, p.name, p.note, p.x, p.y, p.pin_number,
        p.status_id, p.category_id, p.due_date, p.created_at,
        c.id, c.name, c.email,
        a.id, a.name, a.email,
        pl.id, pl.name, pl.file_path,
        pr.id, pr.name, pr.project_number
    FROM pins p
    JOIN projects pr ON pr.id = p.project_id
    LEFT JOIN members c ON c.id = p.created_by
    LEFT JOIN members a ON a.id = p.assigned_to
    LEFT JOIN plans pl ON pl.id = p.plan_id`

// ListPins returns every pin of a project with its joined records.
func (s *Store) ListPins(ctx context.Context, projectID int64) ([]models.Pin, error) {
	return s.queryPins(ctx, pinColumns+` WHERE p.project_id = ? ORDER BY p.pin_number, p.id`, projectID)
}

// PinsForReport returns the selected pins of a project, joined with their
// creator, assignee, plan, project and photos.
func (s *Store) PinsForReport(ctx context.Context, projectID int64, pinIDs []int64) ([]models.Pin, error) {
	if len(pinIDs) == 0 {
		return nil, nil
	}
	args := []any{projectID}
	for _, id := range pinIDs {
		args = append(args, id)
	}
	query := pinColumns + ` WHERE p.project_id = ? AND p.id IN (` + placeholders(len(pinIDs)) + `) ORDER BY p.pin_number, p.id`
	return s.queryPins(ctx, query, args...)
}

func (s *Store) queryPins(ctx context.Context, query string, args ...any) ([]models.Pin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()

	var pins []models.Pin
	for rows.Next() {
		p, err := scanPin(rows)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	if err := s.attachPhotos(ctx, pins); err != nil {
		return nil, err
	}
	return pins, nil
}

func scanPin(rows *sql.Rows) (models.Pin, error) {
	var (
		p                                models.Pin
		planID, statusID, categoryID     sql.NullInt64
		dueDate                          sql.NullTime
		creatorID, assigneeID, planRefID sql.NullInt64
		creatorName, creatorEmail        sql.NullString
		assigneeName, assigneeEmail      sql.NullString
		planName, planPath               sql.NullString
		project                          models.Project
	)
	err := rows.Scan(&p.ID, &p.ProjectID, &planID, &p.Name, &p.Note, &p.X, &p.Y, &p.PinNumber,
		&statusID, &categoryID, &dueDate, &p.CreatedAt,
		&creatorID, &creatorName, &creatorEmail,
		&assigneeID, &assigneeName, &assigneeEmail,
		&planRefID, &planName, &planPath,
		&project.ID, &project.Name, &project.ProjectNumber)
	if err != nil {
		return models.Pin{}, fmt.Errorf("scan pin: %w", err)
	}

	p.PlanID = planID.Int64
	p.StatusID = nullInt(statusID)
	p.CategoryID = nullInt(categoryID)
	if dueDate.Valid {
		d := dueDate.Time
		p.DueDate = &d
	}
	if creatorID.Valid {
		p.Creator = &models.Member{ID: creatorID.Int64, Name: creatorName.String, Email: creatorEmail.String}
	}
	if assigneeID.Valid {
		p.Assignee = &models.Member{ID: assigneeID.Int64, Name: assigneeName.String, Email: assigneeEmail.String}
	}
	if planRefID.Valid {
		p.Plan = &models.Plan{ID: planRefID.Int64, ProjectID: p.ProjectID, Name: planName.String, FilePath: planPath.String}
	}
	p.Project = &project
	return p, nil
}

func (s *Store) attachPhotos(ctx context.Context, pins []models.Pin) error {
	if len(pins) == 0 {
		return nil
	}
	index := make(map[int64]int, len(pins))
	args := make([]any, 0, len(pins))
	for i := range pins {
		index[pins[i].ID] = i
		pins[i].Photos = []models.Photo{}
		args = append(args, pins[i].ID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, pin_id, public_url FROM pin_photos
        WHERE pin_id IN (`+placeholders(len(args))+`) ORDER BY id`, args...)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ph models.Photo
		if err := rows.Scan(&ph.ID, &ph.PinID, &ph.PublicURL); err != nil {
			return fmt.Errorf("scan photo: %w", err)
		}
		if i, ok := index[ph.PinID]; ok {
			pins[i].Photos = append(pins[i].Photos, ph)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
