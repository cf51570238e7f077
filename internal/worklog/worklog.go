// Package worklog is the append-only human-readable record of actions
// taken during a run. Records are buffered in memory and flushed to the
// log file exactly once, in the run's finalization path.
package worklog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level marks the severity of one record
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Record is one timestamped log entry. Never mutated after append.
type Record struct {
	Time    time.Time
	Level   Level
	Message string
}

// String renders the record in the on-disk line format
func (r Record) String() string {
	return fmt.Sprintf("%s [%s] %s", r.Time.Format("2006-01-02 15:04:05"), r.Level, r.Message)
}

// Log buffers records for one run
type Log struct {
	path    string
	now     func() time.Time
	records []Record
}

// New creates a Log that flushes to the file at path
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Infof appends an INFO record
func (l *Log) Infof(format string, args ...any) {
	l.append(LevelInfo, format, args...)
}

// Warnf appends a WARNING record
func (l *Log) Warnf(format string, args ...any) {
	l.append(LevelWarning, format, args...)
}

// Errorf appends an ERROR record
func (l *Log) Errorf(format string, args ...any) {
	l.append(LevelError, format, args...)
}

func (l *Log) append(level Level, format string, args ...any) {
	l.records = append(l.records, Record{
		Time:    l.now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

// Records returns the buffered records in insertion order
func (l *Log) Records() []Record {
	return l.records
}

// Flush appends all buffered records to the log file and clears the
// buffer. Calling Flush with an empty buffer is a no-op.
func (l *Log) Flush() error {
	if len(l.records) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	for _, r := range l.records {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return err
	}

	l.records = nil
	return nil
}

// Tail returns the last n lines of the on-disk log file
func Tail(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
