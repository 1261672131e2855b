package log

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Events are written canonically with RFC 3339 nanosecond timestamps.
// Call and signal arguments decode as generic values with string-keyed
// maps, so they can be re-encoded as JSON by the export tools.
var (
	logEncMode = mustMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode())

	logDecMode = mustMode(cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode())
)

func mustMode[M any](m M, err error) M {
	if err != nil {
		panic("log: invalid CBOR options: " + err.Error())
	}
	return m
}

// EncodeEvent encodes an event to CBOR.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes one CBOR-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a stream encoder for events written to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder for events read from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
