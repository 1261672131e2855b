package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Service != "" {
		attrs = append(attrs, slog.String("service", event.Service))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}

	switch {
	case event.Call != nil:
		attrs = append(attrs,
			slog.String("interface", event.Call.Interface),
			slog.String("member", event.Call.Member),
		)
		if event.Call.Args != nil {
			attrs = append(attrs, slog.Any("args", event.Call.Args))
		}
		if event.Call.Status != nil {
			attrs = append(attrs, slog.Int("status", int(*event.Call.Status)))
		}
		if event.Call.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *event.Call.Duration))
		}
	case event.Signal != nil:
		attrs = append(attrs,
			slog.String("interface", event.Signal.Interface),
			slog.String("member", event.Signal.Member),
		)
		if event.Signal.Args != nil {
			attrs = append(attrs, slog.Any("args", event.Signal.Args))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		if event.StateChange.CEMID != "" {
			attrs = append(attrs, slog.String("cem_id", event.StateChange.CEMID))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "bus", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
