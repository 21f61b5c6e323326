// Package sqlxrepos provides the PostgreSQL repositories. Queries are built
// with squirrel and executed through sqlx; rows map to package-local structs
// with db tags and convert to core types at the boundary.
package sqlxrepos

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraint
}
