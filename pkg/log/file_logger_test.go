package log

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func decodeAll(t *testing.T, path string) []Event {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	decoder := NewDecoder(bytes.NewReader(data))
	var events []Event
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		events = append(events, event)
	}
	return events
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}
}

func TestFileLoggerOpenError(t *testing.T) {
	_, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "test.blog"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerService,
		Category:     CategoryCall,
		Path:         "/IntProp",
		Call:         &CallEvent{Interface: "com.victronenergy.BusItem", Member: "GetValue"},
	})
	logger.Close()

	events := decodeAll(t, path)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ConnectionID != "conn-123" {
		t.Errorf("ConnectionID = %q, want %q", events[0].ConnectionID, "conn-123")
	}
	if events[0].Call == nil || events[0].Call.Member != "GetValue" {
		t.Errorf("Call = %+v, want GetValue", events[0].Call)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blog")

	for _, id := range []string{"conn-1", "conn-2"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), ConnectionID: id})
		logger.Close()
	}

	events := decodeAll(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ConnectionID != "conn-1" || events[1].ConnectionID != "conn-2" {
		t.Errorf("order = %q, %q; want conn-1, conn-2", events[0].ConnectionID, events[1].ConnectionID)
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(Event{
					Timestamp:    time.Now(),
					ConnectionID: "conn-" + string(rune('A'+id)),
					Category:     CategorySignal,
					Signal:       &SignalEvent{Member: "ItemsChanged"},
				})
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	if got := len(decodeAll(t, path)); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("got %d events, want %d", got, numGoroutines*eventsPerGoroutine)
	}
	if logger.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", logger.Dropped())
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.blog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close is ignored.
	logger.Log(Event{ConnectionID: "late"})
	if got := len(decodeAll(t, path)); got != 0 {
		t.Errorf("got %d events after close, want 0", got)
	}
}
