// Package postgres implements the service repositories against PostgreSQL
// through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// affected returns notFound when res touched no rows.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// nullIfEmpty stores "" as NULL so unique indexes ignore unset values.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
