package log

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// ConnectionID filters by exact connection ID match.
	ConnectionID string

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by protocol layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// Service filters by the bus name of the logging service.
	Service string

	// Path filters by object path. A trailing "/*" matches the path and
	// everything below it, e.g. "/Mgmt/*".
	Path string

	// Member filters by call or signal member name.
	Member string

	// CEMID filters S2 traffic by client id: state changes naming it and
	// S2 calls or signals carrying it as first argument.
	CEMID string
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.Service != "" && event.Service != f.Service {
		return false
	}
	if f.Path != "" && !matchPath(f.Path, event.Path) {
		return false
	}
	if f.Member != "" && event.Member() != f.Member {
		return false
	}
	if f.CEMID != "" && event.CEMID() != f.CEMID {
		return false
	}
	return true
}

func matchPath(pattern, path string) bool {
	prefix, ok := strings.CutSuffix(pattern, "/*")
	if !ok {
		return path == pattern
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// CEMID returns the S2 client id an event refers to, or "".
func (e Event) CEMID() string {
	switch {
	case e.StateChange != nil:
		return e.StateChange.CEMID
	case e.Call != nil && e.Call.Interface == s2Interface:
		return firstString(e.Call.Args)
	case e.Signal != nil && e.Signal.Interface == s2Interface:
		return firstString(e.Signal.Args)
	}
	return ""
}

// s2Interface is duplicated from pkg/s2 to keep this package free of
// service dependencies.
const s2Interface = "com.victronenergy.S2"

func firstString(args any) string {
	list, ok := args.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	s, _ := list[0].(string)
	return s
}

// Member returns the call or signal member name of the event, or "".
func (e Event) Member() string {
	switch {
	case e.Call != nil:
		return e.Call.Member
	case e.Signal != nil:
		return e.Signal.Member
	}
	return ""
}

// Reader reads protocol log events from a CBOR-encoded file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("decoding event: %w", err)
		}

		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// All iterates over the remaining matching events. Iteration stops after
// the first decoding error, which is yielded once.
func (r *Reader) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
