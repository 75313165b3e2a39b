package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnString         = errors.New("postgres connection string is required")
	ErrFailedToParseConnString = errors.New("failed to parse postgres connection string")
	ErrFailedToOpenDB          = errors.New("failed to open postgres connection")
	ErrHealthcheckFailed       = errors.New("postgres healthcheck failed")
	ErrMigrationFailed         = errors.New("postgres migration failed")
)

// IsNotFoundError reports whether err is pgx's no-rows error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolationError reports whether err is a foreign key violation.
func IsForeignKeyViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
