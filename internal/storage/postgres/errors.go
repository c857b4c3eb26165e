package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique violation raised by
// either driver. When constraint is non-empty only violations of that
// constraint or index match.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation &&
			(constraint == "" || pqErr.Constraint == constraint)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation &&
			(constraint == "" || pgErr.ConstraintName == constraint)
	}

	return false
}
