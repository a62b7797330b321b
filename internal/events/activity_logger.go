package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// Default maximum log file size (100MB)
	DefaultMaxLogSize = 100 * 1024 * 1024
	LogFileExtension  = ".jsonl"
	ArchiveDir        = "archive"
)

// LogEntry is a single activity-log line.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  string         `json:"event_type"`
	TargetID   string         `json:"target_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	CreatorID  string         `json:"creator_id,omitempty"`
	ProposalID string         `json:"proposal_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// ActivityLogger appends queue events to a JSONL file with size-based
// rotation into an archive/ sibling directory. It is the durable
// counterpart of the in-memory activity ring: the dashboard and ops
// tooling read it back.
type ActivityLogger struct {
	mu              sync.Mutex
	file            *os.File
	currentSize     int64
	maxSize         int64
	logPath         string
	rotationCounter int
}

// NewActivityLogger creates an activity logger writing to logPath.
func NewActivityLogger(logPath string, maxSize int64) (*ActivityLogger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &ActivityLogger{
		logPath: logPath,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ActivityLogger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Log writes an event to the activity log, lifting the common
// identity fields out of the payload when present.
func (l *ActivityLogger) Log(eventType, targetID string, details map[string]any) error {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		TargetID:  targetID,
		Details:   details,
	}

	if requestID, ok := details["request_id"].(string); ok {
		entry.RequestID = requestID
	}
	if creatorID, ok := details["creator_id"].(string); ok {
		entry.CreatorID = creatorID
	}
	if proposalID, ok := details["proposal_id"].(string); ok {
		entry.ProposalID = proposalID
	}

	return l.WriteEntry(&entry)
}

// WriteEntry appends a structured entry, rotating first if the write
// would exceed the size limit.
func (l *ActivityLogger) WriteEntry(entry *LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

// rotate moves the current file into archive/ with a timestamped name
// and reopens a fresh one.
func (l *ActivityLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log file: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.logPath), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	l.rotationCounter++
	baseName := filepath.Base(l.logPath)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(LogFileExtension)],
		timestamp,
		l.rotationCounter,
		LogFileExtension)

	if err := os.Rename(l.logPath, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}

	return l.openLogFile()
}

// Close flushes and closes the activity logger.
func (l *ActivityLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}

// CurrentSize returns the current size of the log file.
func (l *ActivityLogger) CurrentSize() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentSize
}
