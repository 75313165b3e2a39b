package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls attributes out of a context at log time. Extractors
// must tolerate contexts that carry none of their values.
type ContextExtractor func(ctx context.Context) []slog.Attr

// decoratedHandler wraps another handler and enriches every record with
// attributes extracted from the context.
type decoratedHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newDecoratedHandler(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	return &decoratedHandler{next: next, extractors: extractors}
}

func (h *decoratedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *decoratedHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, extract := range h.extractors {
		if attrs := extract(ctx); len(attrs) > 0 {
			record.AddAttrs(attrs...)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *decoratedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &decoratedHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *decoratedHandler) WithGroup(name string) slog.Handler {
	return &decoratedHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
