// Package errlog appends structured publishing failures to a durable log file.
package errlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonathan/content-publisher/internal/types"
)

const (
	logDir  = "logs"
	logFile = "publishing_errors.log"
)

// Logger writes PublishingError records under <baseDir>/logs
type Logger struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures a Logger
type Option func(*Logger)

// WithLogger sets the slog logger used to report write failures
func WithLogger(l *slog.Logger) Option {
	return func(lg *Logger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithClock overrides the timestamp source used for records without one
func WithClock(now func() time.Time) Option {
	return func(lg *Logger) {
		if now != nil {
			lg.now = now
		}
	}
}

// New creates the log directory if needed and returns a Logger for it.
func New(baseDir string, opts ...Option) (*Logger, error) {
	l := &Logger{
		path:   Path(baseDir),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create error log directory: %w", err)
	}
	return l, nil
}

// Path returns the error log location for baseDir
func Path(baseDir string) string {
	return filepath.Join(baseDir, logDir, logFile)
}

// Path returns the file this logger appends to
func (l *Logger) Path() string {
	return l.path
}

// LogError appends one record as pretty-printed JSON followed by a newline.
// Failures are reported through slog and returned; they never panic.
func (l *Logger) LogError(record types.PublishingError) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now().UTC()
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		l.logger.Error("failed to encode error log entry", "content_id", record.ContentID, "error", err)
		return fmt.Errorf("failed to encode error log entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("failed to open error log", "path", l.path, "error", err)
		return fmt.Errorf("failed to open error log: %w", err)
	}

	// single write so concurrent appenders never interleave a record
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		l.logger.Error("failed to write error log", "path", l.path, "error", err)
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}

// FormatError normalizes an arbitrary failure value into a message.
func FormatError(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case error:
		return e.Error()
	case fmt.Stringer:
		return e.String()
	case string:
		return e
	default:
		return fmt.Sprint(v)
	}
}

// ReadErrors decodes every record in <baseDir>/logs/publishing_errors.log.
// A missing file yields no records.
func ReadErrors(baseDir string) ([]types.PublishingError, error) {
	f, err := os.Open(Path(baseDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	defer f.Close()

	return decodeRecords(f)
}

func decodeRecords(r io.Reader) ([]types.PublishingError, error) {
	var records []types.PublishingError
	dec := json.NewDecoder(r)
	for {
		var rec types.PublishingError
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("failed to decode error log entry %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
