package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/log"
)

// Record is the flat form of an event used by the text exports.
type Record struct {
	Time         time.Time `json:"time"`
	ConnectionID string    `json:"connection_id"`
	Direction    string    `json:"direction"`
	Layer        string    `json:"layer"`
	Category     string    `json:"category"`
	Service      string    `json:"service,omitempty"`
	Path         string    `json:"path,omitempty"`
	Interface    string    `json:"interface,omitempty"`
	Member       string    `json:"member"`
	Args         any       `json:"args,omitempty"`
	Status       *int32    `json:"status,omitempty"`
	DurationUS   *int64    `json:"duration_us,omitempty"`
	CEMID        string    `json:"cem_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// NewRecord flattens an event. State changes use the new state as member,
// errors use "error".
func NewRecord(e log.Event) Record {
	r := Record{
		Time:         e.Timestamp.UTC(),
		ConnectionID: e.ConnectionID,
		Direction:    e.Direction.String(),
		Layer:        e.Layer.String(),
		Category:     e.Category.String(),
		Service:      e.Service,
		Path:         e.Path,
		Member:       e.Member(),
	}
	switch {
	case e.Call != nil:
		r.Interface = e.Call.Interface
		r.Args = e.Call.Args
		r.Status = e.Call.Status
		if e.Call.Duration != nil {
			us := e.Call.Duration.Microseconds()
			r.DurationUS = &us
		}
	case e.Signal != nil:
		r.Interface = e.Signal.Interface
		r.Args = e.Signal.Args
	case e.StateChange != nil:
		r.Member = e.StateChange.NewState
		r.CEMID = e.StateChange.CEMID
		r.Detail = e.StateChange.Reason
	case e.Error != nil:
		r.Member = "error"
		r.Detail = e.Error.Message
		if e.Error.Context != "" {
			r.Detail = e.Error.Context + ": " + e.Error.Message
		}
	}
	return r
}

// csvHeader lists the CSV columns in order.
var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category",
	"service", "path", "member", "status", "detail"}

func (r Record) csvRow() []string {
	status := ""
	if r.Status != nil {
		status = strconv.Itoa(int(*r.Status))
	}
	detail := r.Detail
	if r.CEMID != "" {
		detail = strings.TrimSpace("cem=" + r.CEMID + " " + detail)
	}
	return []string{
		r.Time.Format("2006-01-02T15:04:05.000000Z"),
		r.ConnectionID, r.Direction, r.Layer, r.Category,
		r.Service, r.Path, r.Member, status, detail,
	}
}

// recordWriter is one export format.
type recordWriter interface {
	Write(Record) error
	Flush() error
}

type jsonlWriter struct{ enc *json.Encoder }

func (w jsonlWriter) Write(r Record) error { return w.enc.Encode(r) }
func (w jsonlWriter) Flush() error         { return nil }

type csvWriter struct{ cw *csv.Writer }

func (w csvWriter) Write(r Record) error { return w.cw.Write(r.csvRow()) }

func (w csvWriter) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

func newRecordWriter(format string, out io.Writer) (recordWriter, error) {
	switch format {
	case "jsonl":
		return jsonlWriter{enc: json.NewEncoder(out)}, nil
	case "csv":
		cw := csv.NewWriter(out)
		if err := cw.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		return csvWriter{cw: cw}, nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
}

// RunExport writes every event of the log file as jsonl or csv to output,
// or to stdout when output is empty.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var out io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := newRecordWriter(format, out)
	if err != nil {
		return err
	}
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := w.Write(NewRecord(event)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return w.Flush()
}
