package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Rotator implements io.Writer and handles log file rotation based on size.
type Rotator struct {
	Filename   string
	MaxSize    int64 // Bytes
	MaxBackups int
	file       *os.File
	size       int64
	mu         sync.Mutex
}

// Logger wraps zerolog.Logger so components can take it by injection.
type Logger struct {
	zerolog.Logger
}

// Setup builds the application logger writing to both the console and a rotating file.
// If the file cannot be opened, it falls back to the console only.
func Setup(filename string, maxSizeMB int64, maxBackups int, level string) *Logger {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	rotator := &Rotator{
		Filename:   filename,
		MaxSize:    maxSizeMB * 1024 * 1024,
		MaxBackups: maxBackups,
	}
	if err := rotator.openExistingOrNew(); err != nil {
		l := New(level, console)
		l.Warn().Err(err).Str("file", filename).Msg("Failed to open log file, using stdout only")
		return l
	}

	// The file keeps raw JSON lines, the console gets the pretty form
	return New(level, zerolog.MultiLevelWriter(console, rotator))
}

// New creates a logger with the specified level writing to w.
func New(level string, w io.Writer) *Logger {
	l := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &Logger{Logger: l}
}

// NewSilent creates a logger that discards all output.
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (r *Rotator) openExistingOrNew() error {
	info, err := os.Stat(r.Filename)
	if os.IsNotExist(err) {
		return r.openNew()
	}
	if err != nil {
		return err
	}

	// File exists, open it in append mode
	f, err := os.OpenFile(r.Filename, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *Rotator) openNew() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

// Write satisfies the io.Writer interface. It checks size and rotates if needed.
func (r *Rotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	writeLen := int64(len(p))

	if r.file == nil {
		if err = r.openExistingOrNew(); err != nil {
			return 0, err
		}
	}

	if r.MaxSize > 0 && r.size+writeLen > r.MaxSize {
		// Keep writing to the old file if rotation fails so no lines are lost
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate closes the current file, renames backups, and opens a new file.
func (r *Rotator) rotate() error {
	if r.file != nil {
		r.file.Close()
	}

	// log.2 -> log.3, log.1 -> log.2, log -> log.1
	for i := r.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.Filename, i)
		newPath := fmt.Sprintf("%s.%d", r.Filename, i+1)

		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			continue
		}

		os.Rename(oldPath, newPath)
	}

	if _, err := os.Stat(r.Filename); err == nil {
		os.Rename(r.Filename, fmt.Sprintf("%s.1", r.Filename))
	}

	return r.openNew()
}

// Close releases the underlying file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
