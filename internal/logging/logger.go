package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

// New builds the process logger. Empty settings mean JSON at info level on stdout. The
// returned closer is non-nil only when logging goes to a file.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	out, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	if normalize(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()
	return &l, closer, nil
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(normalize(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch normalize(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f, nil
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Component derives a child logger tagged with the component name.
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	if base == nil {
		l := zerolog.Nop()
		return &l
	}
	l := base.With().Str("component", name).Logger()
	return &l
}

// ForEvent derives a logger carrying the identifying fields of a change event.
func ForEvent(base *zerolog.Logger, ev models.ChangeEvent) *zerolog.Logger {
	if base == nil {
		l := zerolog.Nop()
		return &l
	}
	l := base.With().
		Str("event_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Int64("task_id", ev.TaskID()).
		Logger()
	return &l
}
