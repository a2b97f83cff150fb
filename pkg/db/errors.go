package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
)

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// Postgres errors are matched on SQLSTATE and constraint name; SQLite, used in
// tests, only exposes the message, so constraintName is matched as text there.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if info, ok := pkgerrors.PostgresInfo(err); ok {
		return info.Code == sqlStateUniqueViolation &&
			(constraintName == "" || info.Constraint == constraintName)
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
