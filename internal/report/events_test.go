package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("Failed to decode JSONL line %q: %v", scanner.Text(), err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to scan log file: %v", err)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.Path() == "" {
		t.Fatal("EventLogger path is empty")
	}
	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if !strings.HasPrefix(filename, "events-") || !strings.HasSuffix(filename, ".jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
	if !strings.Contains(filename, logger.RunID()[:8]) {
		t.Errorf("Event log filename %s does not carry run ID %s", filename, logger.RunID())
	}
}

func TestEventLogger_StampsRunID(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.LogLookup(928094, "XC928094", 150*time.Millisecond); err != nil {
		t.Fatalf("LogLookup failed: %v", err)
	}
	if err := logger.LogPersist(928094, "/sounds/XC928094.xc.json"); err != nil {
		t.Fatalf("LogPersist failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	for _, event := range events {
		if event.RunID != logger.RunID() {
			t.Errorf("Event run_id = %q, expected %q", event.RunID, logger.RunID())
		}
		if event.Timestamp.IsZero() {
			t.Error("Event timestamp was not set")
		}
	}

	lookup := events[0]
	if lookup.Event != EventLookup || lookup.XCID != 928094 || lookup.Duration != 150 {
		t.Errorf("Unexpected lookup event: %+v", lookup)
	}
	if lookup.Extra["input"] != "XC928094" {
		t.Errorf("Expected input extra 'XC928094', got %q", lookup.Extra["input"])
	}

	if events[1].Event != EventPersist || events[1].Path != "/sounds/XC928094.xc.json" {
		t.Errorf("Unexpected persist event: %+v", events[1])
	}
}

func TestEventLogger_StageHelpers(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogDownload(7, "/sounds/XC7.mp3", 4096, "MP3")
	logger.LogDownload(7, "/sounds/XC7.wav", 10, "")
	logger.LogIndex(7, "/sounds/index.json", "inserted")
	logger.LogError(EventLookup, 7, errors.New("boom"))
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(events))
	}

	if events[0].Bytes != 4096 || events[0].Extra["format"] != "MP3" {
		t.Errorf("Unexpected download event: %+v", events[0])
	}
	if events[1].Extra != nil {
		t.Errorf("Expected no extra for unknown format, got %v", events[1].Extra)
	}
	if events[2].Event != EventIndex || events[2].Outcome != "inserted" {
		t.Errorf("Unexpected index event: %+v", events[2])
	}

	failed := events[3]
	if failed.Level != LevelError || failed.Event != EventError {
		t.Errorf("Unexpected error event: %+v", failed)
	}
	if failed.Error != "boom" || failed.Extra["stage"] != "lookup" {
		t.Errorf("Error event lost details: %+v", failed)
	}
}

func TestEventLogger_LevelFiltering(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelWarning)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.Log(&Event{Level: LevelDebug, Event: EventLookup})
	logger.Log(&Event{Level: LevelInfo, Event: EventPersist})
	logger.Log(&Event{Level: LevelWarning, Event: EventDownload})
	logger.Log(&Event{Level: LevelError, Event: EventError})
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 2 {
		t.Fatalf("Expected 2 events at warning and above, got %d", len(events))
	}
	if events[0].Level != LevelWarning || events[1].Level != LevelError {
		t.Errorf("Unexpected levels: %s, %s", events[0].Level, events[1].Level)
	}
}

func TestEventLogger_Concurrent(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	numGoroutines := 10
	eventsPerGoroutine := 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.LogPersist(uint64(id*100+j), "/sounds/x.xc.json")
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != numGoroutines*eventsPerGoroutine {
		t.Errorf("Expected %d events, got %d", numGoroutines*eventsPerGoroutine, len(events))
	}
}

func TestNullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogLookup(1, "1", time.Second); err != nil {
		t.Errorf("NullLogger LogLookup returned error: %v", err)
	}
	if err := logger.LogError(EventIndex, 1, errors.New("x")); err != nil {
		t.Errorf("NullLogger LogError returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger Close returned error: %v", err)
	}
	if logger.Path() != "" || logger.RunID() != "" {
		t.Error("NullLogger should report empty path and run ID")
	}
}
