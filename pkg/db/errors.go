package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes the repositories care about.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesState(err, sqlStateUniqueViolation, constraintName, "UNIQUE constraint failed", "duplicate key value")
}

// IsForeignKeyViolation reports whether err is a foreign key violation, such as
// deleting a product that historical order items still reference.
func IsForeignKeyViolation(err error, constraintName string) bool {
	return matchesState(err, sqlStateForeignKeyViolation, constraintName, "FOREIGN KEY constraint failed", "violates foreign key constraint")
}

func matchesState(err error, state, constraintName string, fallbacks ...string) bool {
	if err == nil {
		return false
	}

	code, constraint, ok := postgresError(err)
	if ok {
		if code != state {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}

	// sqlite only exposes text and names columns, not constraints.
	msg := err.Error()
	for _, fb := range fallbacks {
		if strings.Contains(msg, fb) {
			return true
		}
	}
	return false
}

func postgresError(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
