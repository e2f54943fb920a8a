// Package audit provides an append-only audit log for security-relevant
// decisions. Every task evaluation writes one entry, success or failure.
// Entries are held in a bounded in-memory buffer and periodically flushed
// to a JSON-lines file when one is configured.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aatumaykin/nexos/internal/logger"
)

// Outcome is the result recorded for an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}

// Log is an append-only audit log. When the buffer reaches capacity the
// oldest unflushed entries are dropped and a warning is logged; the log
// never blocks the evaluation path.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	filePath string
	logger   *logger.Logger
	dropped  uint64
}

// New creates an audit log with the given buffer capacity. filePath may be
// empty to keep the log in memory only.
func New(capacity int, filePath string, log *logger.Logger) *Log {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Log{
		capacity: capacity,
		filePath: filePath,
		logger:   log,
	}
}

// Record appends an entry, stamping it if the caller left Timestamp zero.
func (l *Log) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.capacity {
		l.entries = l.entries[1:]
		l.dropped++
		if l.dropped%100 == 1 {
			l.logger.Warn("audit buffer full, dropping oldest entries",
				logger.Field{Key: "dropped_total", Value: l.dropped})
		}
	}
	l.entries = append(l.entries, e)
}

// Entries returns a snapshot of the buffered entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]Entry, len(l.entries))
	copy(snapshot, l.entries)
	return snapshot
}

// CountByOutcome returns the number of buffered entries with the outcome.
func (l *Log) CountByOutcome(o Outcome) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, e := range l.entries {
		if e.Outcome == o {
			count++
		}
	}
	return count
}

// Flush appends the buffered entries to the configured file as JSON lines
// and empties the buffer. A no-op when no file is configured.
func (l *Log) Flush() error {
	l.mu.Lock()
	if l.filePath == "" || len(l.entries) == 0 {
		l.mu.Unlock()
		return nil
	}
	pending := l.entries
	l.entries = nil
	l.mu.Unlock()

	file, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		// Put the entries back so nothing is lost on a transient failure.
		l.mu.Lock()
		l.entries = append(pending, l.entries...)
		l.mu.Unlock()
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, e := range pending {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}

	l.logger.Debug("audit log flushed",
		logger.Field{Key: "entries", Value: len(pending)},
		logger.Field{Key: "path", Value: l.filePath})
	return nil
}
