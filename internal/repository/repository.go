package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// sqlNoRows lets exec-style queries report "nothing matched" the same way
// Get-style queries do, so services need only one not-found check.
func sqlNoRows() error {
	return sql.ErrNoRows
}

// IsUniqueViolation reports whether the error is a Postgres unique
// constraint violation, optionally for a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
