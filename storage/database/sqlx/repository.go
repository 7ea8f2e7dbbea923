package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core/school"
)

const uniqueViolation = "23505"

// NewRepositories returns all the school repositories backed by db, which may be a *sqlx.DB or a *sqlx.Tx.
func NewRepositories(db sqlx.ExtContext) school.Repositories {
	return school.Repositories{
		Schools:  NewSchoolRepository(db),
		Admins:   NewAdminRepository(db),
		Parents:  NewParentRepository(db),
		Students: NewStudentRepository(db),
	}
}

// trapErr maps "no rows" to school.ErrNotFound and unique violations to school.ErrDuplicate.
func trapErr(err error, msg string) error {
	cause := errors.Cause(err)
	if cause == sql.ErrNoRows {
		return school.ErrNotFound
	}
	if pqErr, ok := cause.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return school.ErrDuplicate
	}
	return errors.Wrap(err, msg)
}

// in expands the `IN (?)` clauses of query for the bound driver.
func in(db sqlx.ExtContext, query string, args ...interface{}) (string, []interface{}, error) {
	q, params, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return db.Rebind(q), params, nil
}

// multiValues builds "(?, ?), (?, ?)..." for n rows of width columns.
func multiValues(n, width int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	return strings.TrimSuffix(strings.Repeat(row+", ", n), ", ")
}
