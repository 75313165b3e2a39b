// Package logger builds configured slog loggers.
//
// It provides a factory with functional options, attribute helpers that keep
// field names consistent, and a handler decorator that enriches records with
// values extracted from the request context.
package logger
