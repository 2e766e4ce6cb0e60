package boardstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftboard/driftboard/internal/board"
)

// PostgresStore persists everything in Postgres via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			display_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS canvases (
			project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
			objects JSONB NOT NULL DEFAULT '[]',
			rev BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS views (
			project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
			offset_x DOUBLE PRECISION NOT NULL DEFAULT 0,
			offset_y DOUBLE PRECISION NOT NULL DEFAULT 0,
			zoom DOUBLE PRECISION NOT NULL DEFAULT 0.25,
			rev BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			name TEXT NOT NULL,
			width DOUBLE PRECISION NOT NULL,
			height DOUBLE PRECISION NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p board.Project) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO projects (id, name, owner_id) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.OwnerID)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	// Seed empty canvas and default view at rev 1.
	if _, err := tx.Exec(ctx, `INSERT INTO canvases (project_id) VALUES ($1)`, p.ID); err != nil {
		return fmt.Errorf("seed canvas: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO views (project_id) VALUES ($1)`, p.ID); err != nil {
		return fmt.Errorf("seed view: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (board.Project, error) {
	var p board.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return board.Project{}, ErrNotFound
		}
		return board.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]board.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM projects
		 WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []board.Project
	for rows.Next() {
		var p board.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Canvas ---

func (s *PostgresStore) GetCanvas(ctx context.Context, projectID string) ([]board.CanvasObject, int64, error) {
	var data []byte
	var rev int64
	err := s.pool.QueryRow(ctx,
		`SELECT objects, rev FROM canvases WHERE project_id = $1`, projectID).Scan(&data, &rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get canvas: %w", err)
	}

	var objects []board.CanvasObject
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, 0, fmt.Errorf("decode canvas: %w", err)
	}
	return objects, rev, nil
}

// PutCanvas applies the write only when baseRev matches the stored revision;
// a concurrent writer having bumped it first yields ErrConflict.
func (s *PostgresStore) PutCanvas(ctx context.Context, projectID string, objects []board.CanvasObject, baseRev int64) (int64, error) {
	data, err := json.Marshal(objects)
	if err != nil {
		return 0, fmt.Errorf("encode canvas: %w", err)
	}

	var rev int64
	err = s.pool.QueryRow(ctx,
		`UPDATE canvases SET objects = $2, rev = rev + 1
		 WHERE project_id = $1 AND rev = $3
		 RETURNING rev`,
		projectID, data, baseRev).Scan(&rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.putMiss(ctx, `SELECT 1 FROM canvases WHERE project_id = $1`, projectID)
		}
		return 0, fmt.Errorf("put canvas: %w", err)
	}
	return rev, nil
}

// --- View ---

func (s *PostgresStore) GetView(ctx context.Context, projectID string) (board.ViewState, int64, error) {
	var v board.ViewState
	var rev int64
	err := s.pool.QueryRow(ctx,
		`SELECT offset_x, offset_y, zoom, rev FROM views WHERE project_id = $1`, projectID).
		Scan(&v.Offset.X, &v.Offset.Y, &v.Zoom, &rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return board.ViewState{}, 0, ErrNotFound
		}
		return board.ViewState{}, 0, fmt.Errorf("get view: %w", err)
	}
	return v, rev, nil
}

func (s *PostgresStore) PutView(ctx context.Context, projectID string, view board.ViewState, baseRev int64) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx,
		`UPDATE views SET offset_x = $2, offset_y = $3, zoom = $4, rev = rev + 1
		 WHERE project_id = $1 AND rev = $5
		 RETURNING rev`,
		projectID, view.Offset.X, view.Offset.Y, view.Zoom, baseRev).Scan(&rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.putMiss(ctx, `SELECT 1 FROM views WHERE project_id = $1`, projectID)
		}
		return 0, fmt.Errorf("put view: %w", err)
	}
	return rev, nil
}

// putMiss distinguishes a stale revision from a missing project.
func (s *PostgresStore) putMiss(ctx context.Context, existsQuery, projectID string) error {
	var one int
	err := s.pool.QueryRow(ctx, existsQuery, projectID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	return ErrConflict
}

// --- Assets ---

func (s *PostgresStore) CreateAsset(ctx context.Context, a board.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, url, name, width, height) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.URL, a.Name, a.Width, a.Height)
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (board.Asset, error) {
	var a board.Asset
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, name, width, height, deleted, created_at FROM assets WHERE id = $1`, id).
		Scan(&a.ID, &a.URL, &a.Name, &a.Width, &a.Height, &a.Deleted, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return board.Asset{}, ErrNotFound
		}
		return board.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// SetAssetDeleted soft-deletes or restores an asset. Files stay on disk so
// undo can bring the asset back.
func (s *PostgresStore) SetAssetDeleted(ctx context.Context, id string, deleted bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE assets SET deleted = $2 WHERE id = $1`, id, deleted)
	if err != nil {
		return fmt.Errorf("set asset deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password, display_name) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password, display_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password, display_name FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
