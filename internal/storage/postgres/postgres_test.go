package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoSim-25-26J-441/template-registry/config"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "templates"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=templates sslmode=disable", DSN(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("lib/pq error on the alias index", func(t *testing.T) {
		err := fmt.Errorf("insert template: %w", &pq.Error{Code: "23505", Constraint: TemplatesAliasConstraint})
		assert.True(t, IsUniqueViolation(err, TemplatesAliasConstraint))
		assert.True(t, IsUniqueViolation(err, ""))
		assert.False(t, IsUniqueViolation(err, "templates_pkey"))
	})

	t.Run("pgx error on the alias index", func(t *testing.T) {
		err := fmt.Errorf("insert template: %w", &pgconn.PgError{Code: "23505", ConstraintName: TemplatesAliasConstraint})
		assert.True(t, IsUniqueViolation(err, TemplatesAliasConstraint))
	})

	t.Run("other sqlstate", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
		assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}, ""))
	})

	t.Run("plain errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(nil, ""))
		assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	})
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS templates_project_alias_unique`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS projects`).WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
