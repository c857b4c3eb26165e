package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/storage/postgres"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const templateColumns = `id, alias, project_id, config, build_file_content, build_status, build_error, created_at, updated_at`

// TemplateRepository handles PostgreSQL operations for templates
type TemplateRepository struct {
	db *sql.DB
	q  DBTX
}

var _ domain.TemplateRepository = (*TemplateRepository)(nil)

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db, q: db}
}

// InTx runs fn in a single transaction and commits when fn returns nil.
// Calling InTx on a repository that is already bound to a transaction
// reuses that transaction.
func (r *TemplateRepository) InTx(ctx context.Context, fn func(store domain.TemplateStore) error) (err error) {
	if _, inTx := r.q.(*sql.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&TemplateRepository{db: r.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Op(ctx, "template_tx").WithError(rbErr).Warn("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if postgres.IsUniqueViolation(err, postgres.TemplatesAliasConstraint) {
			return domain.ErrConstraintViolation
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID retrieves a template by id within a project
func (r *TemplateRepository) FindByID(ctx context.Context, projectID, id string) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1 AND project_id = $2`
	t, err := scanTemplate(r.q.QueryRowContext(ctx, query, id, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// FindByProjectAndAlias retrieves the template holding alias in a project
func (r *TemplateRepository) FindByProjectAndAlias(ctx context.Context, projectID, alias string) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE project_id = $1 AND alias = $2`
	t, err := scanTemplate(r.q.QueryRowContext(ctx, query, projectID, alias))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template by alias: %w", err)
	}
	return t, nil
}

// ExistsByProjectAndAlias checks whether alias is taken in a project,
// ignoring the row with id excludeID when it is non-empty.
func (r *TemplateRepository) ExistsByProjectAndAlias(ctx context.Context, projectID, alias, excludeID string) (bool, error) {
	var (
		exists bool
		err    error
	)
	if excludeID == "" {
		err = r.q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM templates WHERE project_id = $1 AND alias = $2)`,
			projectID, alias,
		).Scan(&exists)
	} else {
		err = r.q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM templates WHERE project_id = $1 AND alias = $2 AND id <> $3)`,
			projectID, alias, excludeID,
		).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check alias: %w", err)
	}
	return exists, nil
}

// ListByProject returns one page of a project's templates, newest first
func (r *TemplateRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.Template, int64, error) {
	var total int64
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM templates WHERE project_id = $1`, projectID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	query := `SELECT ` + templateColumns + ` FROM templates WHERE project_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.q.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	out, err := scanTemplates(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListStale returns unfinished builds that have not changed since before,
// oldest first. Used by the reconciler only; it spans projects.
func (r *TemplateRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates
WHERE build_status IN ('pending', 'building') AND updated_at < $1
ORDER BY updated_at ASC
LIMIT $2`
	rows, err := r.q.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// Insert creates a new template row
func (r *TemplateRepository) Insert(ctx context.Context, t *domain.Template) error {
	configJSON, err := marshalConfig(t.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO templates (
			id, alias, project_id, config, build_file_content,
			build_status, build_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.q.ExecContext(ctx, query,
		t.ID,
		t.Alias,
		t.ProjectID,
		configJSON,
		nullString(t.BuildFile),
		string(t.BuildStatus),
		nullIfEmpty(t.BuildError),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.TemplatesAliasConstraint) {
			return domain.ErrConstraintViolation
		}
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

// Update writes the mutable definition fields of a template
func (r *TemplateRepository) Update(ctx context.Context, t *domain.Template) error {
	configJSON, err := marshalConfig(t.Config)
	if err != nil {
		return err
	}

	query := `
		UPDATE templates
		SET alias = $3, config = $4, build_file_content = $5, updated_at = $6
		WHERE id = $1 AND project_id = $2
	`
	result, err := r.q.ExecContext(ctx, query,
		t.ID, t.ProjectID, t.Alias, configJSON, nullString(t.BuildFile), t.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.TemplatesAliasConstraint) {
			return domain.ErrConstraintViolation
		}
		return fmt.Errorf("failed to update template: %w", err)
	}
	return requireAffected(result)
}

// UpdateStatus sets the build status and error message of a template
func (r *TemplateRepository) UpdateStatus(ctx context.Context, projectID, id string, status domain.BuildStatus, buildErr string) error {
	query := `
		UPDATE templates
		SET build_status = $3, build_error = $4, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
	`
	result, err := r.q.ExecContext(ctx, query, id, projectID, string(status), nullIfEmpty(buildErr))
	if err != nil {
		return fmt.Errorf("failed to update template status: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a template; the bool reports whether a row was removed
func (r *TemplateRepository) Delete(ctx context.Context, projectID, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM templates WHERE id = $1 AND project_id = $2`, id, projectID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		t          domain.Template
		configJSON []byte
		buildFile  sql.NullString
		buildErr   sql.NullString
		status     string
	)
	if err := row.Scan(
		&t.ID, &t.Alias, &t.ProjectID, &configJSON, &buildFile,
		&status, &buildErr, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.BuildStatus = domain.BuildStatus(status)
	if buildFile.Valid {
		t.BuildFile = &buildFile.String
	}
	if buildErr.Valid {
		t.BuildError = buildErr.String
	}

	t.Config = map[string]interface{}{}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &t.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template config: %w", err)
		}
	}
	return &t, nil
}

func scanTemplates(rows *sql.Rows) ([]domain.Template, error) {
	out := make([]domain.Template, 0, 16)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func marshalConfig(config map[string]interface{}) ([]byte, error) {
	if config == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template config: %w", err)
	}
	return b, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}
