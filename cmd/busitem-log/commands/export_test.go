package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/log"
)

// createTestLogFile creates a temporary log file with the given events.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bilog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func int32Ptr(v int32) *int32 { return &v }

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "abc12345",
			Direction:    log.DirectionIn,
			Layer:        log.LayerService,
			Category:     log.CategoryCall,
			Path:         "/Temperature",
			Call: &log.CallEvent{
				Interface: "com.victronenergy.BusItem",
				Member:    "SetValue",
				Args:      []any{21.5},
				Status:    int32Ptr(0),
			},
		},
		{
			Timestamp:    ts.Add(time.Millisecond),
			ConnectionID: "abc12345",
			Direction:    log.DirectionOut,
			Layer:        log.LayerService,
			Category:     log.CategorySignal,
			Path:         "/",
			Signal:       &log.SignalEvent{Interface: "com.victronenergy.BusItem", Member: "ItemsChanged"},
		},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["path"] != "/Temperature" {
		t.Errorf("path = %v, want /Temperature", first["path"])
	}
	if first["member"] != "SetValue" {
		t.Errorf("member = %v, want SetValue", first["member"])
	}
	if first["status"] != float64(0) {
		t.Errorf("status = %v, want 0", first["status"])
	}
	if args, ok := first["args"].([]any); !ok || len(args) != 1 || args[0] != 21.5 {
		t.Errorf("args = %v, want [21.5]", first["args"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if second["member"] != "ItemsChanged" || second["direction"] != "OUT" {
		t.Errorf("second = %v", second)
	}
	if _, ok := second["status"]; ok {
		t.Error("signal record should have no status")
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts, ConnectionID: "c1", Service: "com.victronenergy.tank.virtual_1",
			Direction: log.DirectionIn, Layer: log.LayerService, Category: log.CategoryCall, Path: "/",
			Call: &log.CallEvent{Member: "SetValues", Status: int32Ptr(-1)},
		},
		{
			Timestamp: ts, ConnectionID: "c1", Layer: log.LayerSession, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityS2, OldState: "IDLE", NewState: "CONNECTED", CEMID: "cem-1"},
		},
		{
			Timestamp: ts, ConnectionID: "c1", Category: log.CategoryError,
			Error: &log.ErrorEventData{Message: "boom"},
		},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][7] != "member" || rows[0][8] != "status" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][5] != "com.victronenergy.tank.virtual_1" || rows[1][7] != "SetValues" || rows[1][8] != "-1" {
		t.Errorf("call row = %v", rows[1])
	}
	if rows[2][3] != "SESSION" || rows[2][7] != "CONNECTED" || rows[2][9] != "cem=cem-1" {
		t.Errorf("state row = %v", rows[2])
	}
	if rows[3][4] != "ERROR" || rows[3][7] != "error" || rows[3][9] != "boom" {
		t.Errorf("error row = %v", rows[3])
	}
}

func TestNewRecordCallDuration(t *testing.T) {
	d := 1500 * time.Microsecond
	r := NewRecord(log.Event{
		Category: log.CategoryCall,
		Call:     &log.CallEvent{Interface: "com.victronenergy.S2", Member: "KeepAlive", Duration: &d},
	})
	if r.Interface != "com.victronenergy.S2" || r.Member != "KeepAlive" {
		t.Errorf("record = %+v", r)
	}
	if r.DurationUS == nil || *r.DurationUS != 1500 {
		t.Errorf("DurationUS = %v, want 1500", r.DurationUS)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)

	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out"))
	if err == nil || !strings.Contains(err.Error(), "unknown format: xml") {
		t.Errorf("err = %v, want unknown format", err)
	}
}

func TestExportMissingFile(t *testing.T) {
	err := RunExport(filepath.Join(t.TempDir(), "missing.bilog"), "jsonl", "")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
