package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/log"
)

func TestStatsCountsByLayer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryCall},
		{Timestamp: ts, Layer: log.LayerService, Category: log.CategoryCall},
		{Timestamp: ts, Layer: log.LayerService, Category: log.CategorySignal},
		{Timestamp: ts, Layer: log.LayerSession, Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"Total Events: 4", "TRANSPORT:", "SERVICE:", "SESSION:", "CALL:", "SIGNAL:", "STATE:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatsMembersAndFailures(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryCall, Call: &log.CallEvent{Member: "SetValue", Status: int32Ptr(0)}},
		{Timestamp: ts, Category: log.CategoryCall, Call: &log.CallEvent{Member: "SetValue", Status: int32Ptr(-1)}},
		{Timestamp: ts, Category: log.CategorySignal, Signal: &log.SignalEvent{Member: "ItemsChanged"}},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "bad"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"Events by Member:", "SetValue:", "ItemsChanged:", "Failed Calls: 1", "Errors: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatsConnections(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "aaaaaaaa-1111", Service: "com.victronenergy.tank.virtual_1"},
		{Timestamp: ts.Add(2 * time.Second), ConnectionID: "aaaaaaaa-1111", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityS2, NewState: "CONNECTED"}},
		{Timestamp: ts.Add(time.Second), ConnectionID: "bbbbbbbb-2222"},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Connections: 2",
		"[aaaaaaaa] 2 events, duration 2s",
		"Service: com.victronenergy.tank.virtual_1",
		"S2 state changes: 1",
		"[bbbbbbbb] 1 events",
		"Duration:   2s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Index(output, "[aaaaaaaa]") > strings.Index(output, "[bbbbbbbb]") {
		t.Error("connections should be sorted by first seen")
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Error("empty file should not print a time range")
	}
}
