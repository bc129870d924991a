// Package postgres reads report records from the managed Postgres backend.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pinreport/internal/models"
)

// Store reads projects, pins and labels through a connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int32, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx, `select id, name, coalesce(project_number, 0), created_at from projects where id=$1`, id).
		Scan(&p.ID, &p.Name, &p.ProjectNumber, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListStatuses returns the statuses of a project in display order.
func (s *Store) ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error) {
	rows, err := s.pool.Query(ctx, `select id, project_id, name, coalesce(color, ''), coalesce("order", 0)
		from statuses where project_id=$1 order by "order", id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	statuses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Status, error) {
		var st models.Status
		err := row.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Color, &st.Order)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan statuses: %w", err)
	}
	return statuses, nil
}

// ListCategories returns the categories of a project in display order.
func (s *Store) ListCategories(ctx context.Context, projectID int64) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `select id, project_id, name, coalesce(icon, ''), coalesce("order", 0)
		from categories where project_id=$1 order by "order", id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		var c models.Category
		err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Icon, &c.Order)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return categories, nil
}

const pinColumns = `select p.id, p.project_id, p.plan_id, p.name, coalesce(p.note, ''), p.x, p.y, p.pin_number,
		p.status_id, p.category_id, p.due_date, p.created_at,
		c.id, c.name, c.email,
		a.id, a.name, a.email,
		pl.id, pl.name, pl.file_path,
		pr.id, pr.name, coalesce(pr.project_number, 0)
	from pins p
	join projects pr on pr.id = p.project_id
	left join members c on c.id = p.created_by
	left join members a on a.id = p.assigned_to
	left join plans pl on pl.id = p.plan_id`

// ListPins returns every pin of a project with its joined records.
func (s *Store) ListPins(ctx context.Context, projectID int64) ([]models.Pin, error) {
	return s.queryPins(ctx, pinColumns+` where p.project_id=$1 order by p.pin_number, p.id`, projectID)
}

// PinsForReport returns the selected pins of a project, joined with their
// creator, assignee, plan, project and photos.
func (s *Store) PinsForReport(ctx context.Context, projectID int64, pinIDs []int64) ([]models.Pin, error) {
	if len(pinIDs) == 0 {
		return nil, nil
	}
	return s.queryPins(ctx, pinColumns+` where p.project_id=$1 and p.id = any($2) order by p.pin_number, p.id`, projectID, pinIDs)
}

func (s *Store) queryPins(ctx context.Context, query string, args ...any) ([]models.Pin, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	pins, err := pgx.CollectRows(rows, scanPin)
	if err != nil {
		return nil, fmt.Errorf("scan pins: %w", err)
	}
	if err := s.attachPhotos(ctx, pins); err != nil {
		return nil, err
	}
	s.logger.Debug("pins loaded", slog.Int("count", len(pins)))
	return pins, nil
}

func scanPin(row pgx.CollectableRow) (models.Pin, error) {
	var (
		p                                models.Pin
		planID                           *int64
		creatorID, assigneeID, planRefID *int64
		creatorName, creatorEmail        *string
		assigneeName, assigneeEmail      *string
		planName, planPath               *string
		project                          models.Project
	)
	err := row.Scan(&p.ID, &p.ProjectID, &planID, &p.Name, &p.Note, &p.X, &p.Y, &p.PinNumber,
		&p.StatusID, &p.CategoryID, &p.DueDate, &p.CreatedAt,
		&creatorID, &creatorName, &creatorEmail,
		&assigneeID, &assigneeName, &assigneeEmail,
		&planRefID, &planName, &planPath,
		&project.ID, &project.Name, &project.ProjectNumber)
	if err != nil {
		return models.Pin{}, err
	}

	if planID != nil {
		p.PlanID = *planID
	}
	if creatorID != nil {
		p.Creator = &models.Member{ID: *creatorID, Name: deref(creatorName), Email: deref(creatorEmail)}
	}
	if assigneeID != nil {
		p.Assignee = &models.Member{ID: *assigneeID, Name: deref(assigneeName), Email: deref(assigneeEmail)}
	}
	if planRefID != nil {
		p.Plan = &models.Plan{ID: *planRefID, ProjectID: p.ProjectID, Name: deref(planName), FilePath: deref(planPath)}
	}
	p.Project = &project
	return p, nil
}

func (s *Store) attachPhotos(ctx context.Context, pins []models.Pin) error {
	if len(pins) == 0 {
		return nil
	}
	index := make(map[int64]int, len(pins))
	ids := make([]int64, 0, len(pins))
	for i := range pins {
		index[pins[i].ID] = i
		pins[i].Photos = []models.Photo{}
		ids = append(ids, pins[i].ID)
	}

	rows, err := s.pool.Query(ctx, `select id, pin_id, public_url from pin_photos where pin_id = any($1) order by id`, ids)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	photos, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Photo])
	if err != nil {
		return fmt.Errorf("scan photos: %w", err)
	}
	for _, ph := range photos {
		if i, ok := index[ph.PinID]; ok {
			pins[i].Photos = append(pins[i].Photos, ph)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
