// Package pg wires PostgreSQL connectivity: pgx pool construction with
// retries, goose migrations, a readiness healthcheck, and helpers for
// classifying common constraint violations.
package pg
