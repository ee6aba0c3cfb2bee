package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

const logFileMode = 0o600

// FileLogger appends one JSON record per line to a file opened O_APPEND.
// The one-record-per-line format keeps the log greppable and lets external
// tooling verify that earlier bytes are never rewritten.
type FileLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileLogger opens (creating if needed) the audit log at path with
// owner-only permissions.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileLogger{file: f, path: path}, nil
}

// Log serializes the event, appends it, and syncs before returning. No
// buffering: durability is part of the contract.
func (l *FileLogger) Log(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

// Query scans the log file and returns matching events in file order, which
// is chronological. limit <= 0 means no limit. Unparseable lines are
// skipped: a partially written trailing record must not hide the rest of
// the log.
func (l *FileLogger) Query(filter Filter, limit int) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log for query: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !filter.matches(e) {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to scan audit log: %w", err)
	}
	return events, nil
}

// Close releases the underlying file handle.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
