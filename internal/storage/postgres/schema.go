package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

// TemplatesAliasConstraint is the unique index backing per-project aliases.
const TemplatesAliasConstraint = "templates_project_alias_unique"

// APIKeysPrefixConstraint is the unique index on api key prefixes.
const APIKeysPrefixConstraint = "api_keys_prefix_unique"

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
