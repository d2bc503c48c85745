package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/profile-service/pkg/config"
)

// Logger wraps slog.Logger with a runtime-adjustable level and an optional rotating file sink.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  io.Closer
}

// New builds the service logger from configuration.
// Records go to stdout (and the rotated file when configured); errors are also sent to Sentry when enabled.
func New(cfg config.Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Logger.Level))

	var (
		out  io.Writer = os.Stdout
		file io.Closer
	)
	if cfg.Logger.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		file = rotating
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.IsDevelopment()}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		handler = &fanoutHandler{handlers: []slog.Handler{
			handler,
			slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
		}}
	}

	base := slog.New(NewMaskingHandler(handler)).With(slog.String("service", "profile-service"), slog.String("env", cfg.AppEnv))

	return &Logger{Logger: base, level: level, file: file}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level string) {
	if l == nil || l.level == nil {
		return
	}
	l.level.Set(ParseLevel(level))
}

// Close releases the rotating file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a textual level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return &fanoutHandler{handlers: next}
}
