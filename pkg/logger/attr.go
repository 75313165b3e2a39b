package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Attribute helpers keep field names consistent across the codebase.

// Component tags a record with the emitting subsystem.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Error records a single error under the conventional key.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// AccountID records the account a ledger operation acts on.
func AccountID(id uuid.UUID) slog.Attr {
	return slog.String("account_id", id.String())
}

// ProductID records the catalog product involved in an operation.
func ProductID(id string) slog.Attr {
	return slog.String("product_id", id)
}

// TransactionID records a billing transaction or event id.
func TransactionID(id string) slog.Attr {
	return slog.String("transaction_id", id)
}

// EventType records the lifecycle event type being reconciled.
func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}

// IdempotencyKey records the client-supplied consumption key.
func IdempotencyKey(key string) slog.Attr {
	return slog.String("idempotency_key", key)
}
