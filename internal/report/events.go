package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the pipeline stage an event belongs to
type EventType string

const (
	EventLookup   EventType = "lookup"
	EventPersist  EventType = "persist"
	EventDownload EventType = "download"
	EventIndex    EventType = "index"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	RunID     string            `json:"run_id"`
	XCID      uint64            `json:"xc_id,omitempty"`
	Path      string            `json:"path,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid
// and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// Every event it writes carries the same freshly generated run ID.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()

	// Timestamp sorts the files; the run ID prefix keeps same-second runs apart
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s-%s.jsonl", timestamp, runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogLookup logs a completed API lookup
func (l *EventLogger) LogLookup(xcID uint64, input string, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventLookup,
		XCID:     xcID,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"input": input,
		},
	})
}

// LogPersist logs a written metadata document
func (l *EventLogger) LogPersist(xcID uint64, path string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventPersist,
		XCID:  xcID,
		Path:  path,
	})
}

// LogDownload logs a written audio file
func (l *EventLogger) LogDownload(xcID uint64, path string, bytesWritten int64, format string) error {
	event := &Event{
		Level: LevelInfo,
		Event: EventDownload,
		XCID:  xcID,
		Path:  path,
		Bytes: bytesWritten,
	}
	if format != "" {
		event.Extra = map[string]string{"format": format}
	}
	return l.Log(event)
}

// LogIndex logs the outcome of an index merge
func (l *EventLogger) LogIndex(xcID uint64, path, outcome string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventIndex,
		XCID:    xcID,
		Path:    path,
		Outcome: outcome,
	})
}

// LogError logs a failed stage
func (l *EventLogger) LogError(stage EventType, xcID uint64, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: EventError,
		XCID:  xcID,
		Error: err.Error(),
		Extra: map[string]string{
			"stage": string(stage),
		},
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the identifier stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
