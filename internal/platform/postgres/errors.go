package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"
)

// Store-level errors surfaced by this package.
var (
	// ErrNotFound indicates that no rows matched the query.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation, typically a
	// sequence collision when the single-writer discipline is broken.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidRow indicates the row violated a schema constraint.
	ErrInvalidRow = errors.New("invalid row")
)

// MapError maps a database error to an appropriate store error,
// wrapping the original so callers keep the driver context for
// debugging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint (%s): %v", ErrInvalidRow, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: not null (%s): %v", ErrInvalidRow, pgErr.ColumnName, err)
		}
	}

	return err
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
