package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	currentLogName  = "audit.log"
	rotatedPattern  = "audit-*.log"
	rotatedTimeFmt  = "20060102T150405.000000000Z"
	defaultMaxSize  = 100 * 1024 * 1024
	defaultMaxFiles = 10
)

// ErrLoggerClosed is returned by Log after Close
var ErrLoggerClosed = errors.New("audit log is closed")

// FileLoggerConfig configures a FileLogger
type FileLoggerConfig struct {
	BasePath string // directory holding audit.log and its rotated siblings
	Rotate   bool
	MaxSize  int64 // bytes; a write that would pass it rotates first
	MaxFiles int   // rotated files kept, oldest removed first
	Sync     bool  // fsync after every event
}

// DefaultFileLoggerConfig returns rotation at 100MB keeping ten files
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/sso/audit",
		Rotate:   true,
		MaxSize:  defaultMaxSize,
		MaxFiles: defaultMaxFiles,
	}
}

// FileLogger appends events as JSON lines to BasePath/audit.log. Rotated
// files are named audit-<UTC timestamp>.log so they sort oldest first.
// Events carry email addresses, so files are created owner-only.
type FileLogger struct {
	cfg  FileLoggerConfig
	now  func() time.Time
	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileLogger creates BasePath if needed and opens audit.log for append
func NewFileLogger(cfg FileLoggerConfig) (*FileLogger, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	if err := os.MkdirAll(cfg.BasePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{cfg: cfg, now: time.Now}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.cfg.BasePath, currentLogName)
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}

	l.file = file
	l.size = info.Size()
	return nil
}

// rotate renames audit.log with a timestamp and opens a fresh one, then
// prunes old rotated files. The logger stays writable when only the rename
// or the prune fails.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log file: %w", err)
	}
	l.file = nil

	rotated := filepath.Join(l.cfg.BasePath, "audit-"+l.now().UTC().Format(rotatedTimeFmt)+".log")
	if err := os.Rename(l.currentPath(), rotated); err != nil {
		if openErr := l.open(); openErr != nil {
			return openErr
		}
		return fmt.Errorf("failed to rename audit log file: %w", err)
	}

	pruneErr := l.prune()
	if err := l.open(); err != nil {
		return err
	}
	return pruneErr
}

func (l *FileLogger) prune() error {
	files, err := filepath.Glob(filepath.Join(l.cfg.BasePath, rotatedPattern))
	if err != nil || len(files) <= l.cfg.MaxFiles {
		return err
	}

	sort.Strings(files)

	var errs []error
	for _, file := range files[:len(files)-l.cfg.MaxFiles] {
		if err := os.Remove(file); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove old audit log %s: %w", file, err))
		}
	}
	return errors.Join(errs...)
}

// Log appends event as one JSON line. An event larger than MaxSize is still
// written, alone, to a fresh file.
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrLoggerClosed
	}

	if l.cfg.Rotate && l.size > 0 && l.size+int64(len(line)) > l.cfg.MaxSize {
		if err := l.rotate(); err != nil && l.file == nil {
			return fmt.Errorf("failed to rotate audit log: %w", err)
		}
	}

	n, err := l.file.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if l.cfg.Sync {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync audit log: %w", err)
		}
	}
	return nil
}

// Close is idempotent
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadLogs returns up to count events from audit.log, oldest first. A count
// of zero returns them all.
func (l *FileLogger) ReadLogs(count int) ([]*Event, error) {
	return readEvents(l.currentPath(), count)
}

func readEvents(path string, count int) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)
		if count > 0 && len(events) >= count {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
