package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "test-conn",
		Category:     CategoryCall,
	}
	logger.Log(event)

	event.Call = &CallEvent{Member: "GetItems"}
	logger.Log(event)

	event.Call = nil
	event.StateChange = &StateChangeEvent{Entity: StateEntityS2, NewState: "CONNECTED"}
	logger.Log(event)

	event.StateChange = nil
	event.Error = &ErrorEventData{Message: "test error"}
	logger.Log(event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
	var _ Logger = &logger
}
