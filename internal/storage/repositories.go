package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open connects to Postgres and verifies the connection. Project mode only;
// the service runs stateless without a DSN.
func Open(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the project-mode tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS saved_runs (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			slide_count INT NOT NULL,
			configuration JSONB NOT NULL,
			slides JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_runs_project ON saved_runs(project_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Project groups saved runs for a user.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedRun is a completed processing run archived under a project. Slides and
// configuration are stored as JSON snapshots of the domain types.
type SavedRun struct {
	ID            uuid.UUID            `json:"id"`
	ProjectID     uuid.UUID            `json:"project_id"`
	Filename      string               `json:"filename"`
	SlideCount    int                  `json:"slide_count"`
	Configuration domain.Configuration `json:"configuration"`
	Slides        []domain.Slide       `json:"slides"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ProjectRepository handles project CRUD operations.
type ProjectRepository struct {
	db DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()

	query := `
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Name, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = $1
	`
	project := &Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return project, err
}

// List lists all projects, newest first.
func (r *ProjectRepository) List(ctx context.Context) ([]*Project, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		if err := rows.Scan(
			&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Delete removes a project and its saved runs.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RunRepository archives completed runs under projects.
type RunRepository struct {
	db DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save archives a run. The run's current slide state is snapshotted as JSON.
func (r *RunRepository) Save(ctx context.Context, saved *SavedRun) error {
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	saved.CreatedAt = time.Now()
	saved.SlideCount = len(saved.Slides)

	configJSON, err := json.Marshal(saved.Configuration)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	slidesJSON, err := json.Marshal(saved.Slides)
	if err != nil {
		return fmt.Errorf("marshal slides: %w", err)
	}

	query := `
		INSERT INTO saved_runs (id, project_id, filename, slide_count, configuration, slides, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		saved.ID, saved.ProjectID, saved.Filename, saved.SlideCount,
		configJSON, slidesJSON, saved.CreatedAt,
	)
	return err
}

// GetByID retrieves a saved run.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*SavedRun, error) {
	query := `
		SELECT id, project_id, filename, slide_count, configuration, slides, created_at
		FROM saved_runs WHERE id = $1
	`
	saved := &SavedRun{}
	var configJSON, slidesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&saved.ID, &saved.ProjectID, &saved.Filename, &saved.SlideCount,
		&configJSON, &slidesJSON, &saved.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &saved.Configuration); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := json.Unmarshal(slidesJSON, &saved.Slides); err != nil {
		return nil, fmt.Errorf("unmarshal slides: %w", err)
	}
	return saved, nil
}

// ListByProject lists a project's saved runs, newest first. Slide bodies are
// not loaded; fetch a run by ID for the full snapshot.
func (r *RunRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*SavedRun, error) {
	query := `
		SELECT id, project_id, filename, slide_count, created_at
		FROM saved_runs
		WHERE project_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SavedRun
	for rows.Next() {
		saved := &SavedRun{}
		if err := rows.Scan(
			&saved.ID, &saved.ProjectID, &saved.Filename, &saved.SlideCount, &saved.CreatedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, saved)
	}
	return runs, rows.Err()
}

// Delete removes a saved run.
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_runs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
