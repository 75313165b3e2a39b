package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the output encoding of the handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger configuration loaded from the environment.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format Format `env:"LOG_FORMAT" envDefault:"json"`
}

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// Option configures the logger returned by New.
type Option func(*options)

// WithLevel sets the minimum level the handler emits.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithFormat selects JSON or text output.
func WithFormat(format Format) Option {
	return func(o *options) { o.format = format }
}

// WithOutput redirects log output, mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithAttrs attaches attributes to every record the logger emits.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers functions that pull attributes out of the
// context on every log call, such as request ids injected by middleware.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) { o.extractors = append(o.extractors, extractors...) }
}

// New builds a slog.Logger writing to stdout unless overridden.
func New(opts ...Option) *slog.Logger {
	o := options{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: o.level}

	var handler slog.Handler
	switch o.format {
	case FormatText:
		handler = slog.NewTextHandler(o.output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	}

	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		handler = newDecoratedHandler(handler, o.extractors)
	}

	return slog.New(handler)
}

// NewFromConfig builds a logger from environment-driven configuration.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	base := []Option{
		WithLevel(parseLevel(cfg.Level)),
		WithFormat(cfg.Format),
	}
	return New(append(base, opts...)...)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
