// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// ext returns the executor queries should run on: the enclosing transaction
// when one is passed, the root handle otherwise.
func ext(db *sqlx.DB, exec ...core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 {
		if e, ok := exec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}

// bindVar renders the nth positional pq placeholder.
func bindVar(n int) string {
	return "$" + strconv.Itoa(n)
}

func joinAnd(clauses []string) string {
	return strings.Join(clauses, " AND ")
}

// trapNoRowsErr converts sql.ErrNoRows into the caller's sentinel.
func trapNoRowsErr(err, sentinel error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return err
}

// orderBy renders an ORDER BY clause from ordering, falling back to def.
// Field names come from code, never from user input.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
