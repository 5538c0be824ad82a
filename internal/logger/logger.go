package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/rs/zerolog"
)

// Rotation settings for --log-file
const (
	rotateThresholdKB = 10 * 1024
	rotateMaxRolls    = 3
)

// Logger wraps zerolog.Logger with the miner's setup helpers
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// New creates a console logger on stdout
func New() *Logger {
	return NewWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
}

// NewWriter creates a new logger that writes to the provided writer
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// NewRotating writes to stdout and to a rotating log file at path
func NewRotating(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	r, err := rotator.New(path, rotateThresholdKB, false, rotateMaxRolls)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	l := NewWriter(zerolog.MultiLevelWriter(console, r))
	l.closer = r
	return l, nil
}

// SetLevel parses and applies a level name such as "debug" or "warn"
func (l *Logger) SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	l.Logger = l.Logger.Level(lvl)
	return nil
}

// Worker returns a child logger tagged with a worker index
func (l *Logger) Worker(id int) *Logger {
	return &Logger{Logger: l.With().Int("worker", id).Logger()}
}

// Close flushes and closes the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
