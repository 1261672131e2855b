// Package log provides structured protocol logging for virtual D-Bus
// services.
//
// This package defines the Logger interface and Event types for capturing
// bus traffic: method calls received on exported objects, signals emitted,
// S2 session state changes and errors. It is separate from operational
// logging (slog); protocol capture is a machine-readable trace for
// debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/data/log/virtual.blog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. The
// busitem-log CLI tool views, filters and summarizes them.
package log
