package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/storage/postgres"
)

// ProjectRepository provides persistence operations for projects
type ProjectRepository struct {
	db *sql.DB
}

var _ domain.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project and its first API key in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project, key *domain.APIKey) error {
	if p.Name == "" {
		return fmt.Errorf("name required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const q = `
INSERT INTO projects (id, name, created_at)
VALUES ($1, $2, $3);
`
	if _, err := tx.ExecContext(ctx, q, p.ID, p.Name, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	if err := insertKey(ctx, tx, key); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

// GetByID returns domain.ErrProjectNotFound when the project does not exist.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	const q = `SELECT id, name, created_at FROM projects WHERE id = $1`

	var p domain.Project
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// List returns all projects, newest first.
func (r *ProjectRepository) List(ctx context.Context) ([]domain.Project, error) {
	const q = `
SELECT id, name, created_at
FROM projects
ORDER BY created_at DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddKey stores an additional key for an existing project.
func (r *ProjectRepository) AddKey(ctx context.Context, key *domain.APIKey) error {
	return insertKey(ctx, r.db, key)
}

func (r *ProjectRepository) FindActiveKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	const q = `
SELECT id, project_id, key_prefix, key_hash, is_active, created_at, last_used_at
FROM api_keys
WHERE key_prefix = $1 AND is_active = TRUE;
`
	var (
		k        domain.APIKey
		lastUsed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, prefix).
		Scan(&k.ID, &k.ProjectID, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &k.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return &k, nil
}

// RevokeKey deactivates a key of the project.
func (r *ProjectRepository) RevokeKey(ctx context.Context, projectID, prefix string) error {
	const q = `
UPDATE api_keys
SET is_active = FALSE
WHERE project_id = $1 AND key_prefix = $2 AND is_active = TRUE;
`
	res, err := r.db.ExecContext(ctx, q, projectID, prefix)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidAPIKey
	}
	return nil
}

func (r *ProjectRepository) TouchKey(ctx context.Context, keyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertKey(ctx context.Context, q execer, key *domain.APIKey) error {
	const stmt = `
INSERT INTO api_keys (id, project_id, key_prefix, key_hash, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := q.ExecContext(ctx, stmt, key.ID, key.ProjectID, key.KeyPrefix, key.KeyHash, key.IsActive, key.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.APIKeysPrefixConstraint) {
			return domain.ErrKeyPrefixTaken
		}
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}
