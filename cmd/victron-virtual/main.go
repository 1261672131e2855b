// Command victron-virtual exports a virtual Victron device on D-Bus.
//
// The device is described by a YAML definition file (bus name, properties
// and initial values, optional S2 resource manager). Once exported, Venus
// OS services see it like any other com.victronenergy.* service.
//
// Usage:
//
//	victron-virtual [flags]
//	victron-virtual <command> [flags]
//
// Examples:
//
//	# Export a temperature sensor on the system bus
//	victron-virtual -d temperature.yaml
//
//	# Export on the session bus with an interactive console
//	victron-virtual -d tank.yaml --bus session -i
//
//	# Check a definition without connecting
//	victron-virtual check tank.yaml
//
//	# Read and write properties of another service
//	victron-virtual get com.victronenergy.settings /Settings/SystemSetup/AcInput1
//	victron-virtual set com.victronenergy.tank.virtual_1 /Level 42
//
// Settings are read from flags, VICTRON_VIRTUAL_* environment variables
// and victron-virtual.yaml, in that order.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Chris927/dbus-victron-virtual/cmd/victron-virtual/interactive"
	"github.com/Chris927/dbus-victron-virtual/pkg/log"
	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/service"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "victron-virtual",
	Short: "Export a virtual Victron device on D-Bus",
	Long: `victron-virtual exports the properties of a YAML definition as a
com.victronenergy BusItem tree, optionally with an S2 resource manager.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runService,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./victron-virtual.yaml)")
	addServiceFlags(rootCmd.Flags())

	rootCmd.AddCommand(checkCmd, versionCmd)
	addRemoteCommands(rootCmd)
}

// addServiceFlags declares the flags behind the config keys.
func addServiceFlags(fs *pflag.FlagSet) {
	fs.String("bus", "system", "Bus to connect to: system or session")
	fs.String("address", "", "Explicit bus address, e.g. tcp:host=venus.local,port=78")
	fs.StringP("definition", "d", "", "Service definition file (YAML)")
	fs.String("protocol-log", "", "Write a protocol log to this file")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("s2-path", "", "Enable S2 at this object path (default from definition)")
	fs.Bool("add-defaults", true, "Add Mgmt/*, ProductId and ProductName")
	fs.String("connection-tag", "Virtual", "Value of Mgmt/Connection")
	fs.BoolP("interactive", "i", false, "Start an interactive console")
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// logSink is an io.Writer whose target can be switched while in use.
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *logSink) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Definition == "" {
		return fmt.Errorf("no definition file given (use --definition or %s_DEFINITION)", envPrefix)
	}

	def, err := model.LoadDefinition(cfg.Definition)
	if err != nil {
		return err
	}
	if cfg.S2Path != "" {
		def.Service.S2 = &model.S2Declaration{Path: cfg.S2Path}
	}

	// Redirected to the console once it exists, so log lines do not break
	// the prompt.
	sink := &logSink{w: os.Stderr}
	logger := newLogger(sink, cfg.LogLevel)

	var protoLoggers []log.Logger
	var fileLogger *log.FileLogger
	if cfg.ProtocolLog != "" {
		fileLogger, err = log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return err
		}
		defer fileLogger.Close()
		protoLoggers = append(protoLoggers, fileLogger)
	}
	if cfg.LogLevel <= slog.LevelDebug {
		protoLoggers = append(protoLoggers, log.NewSlogAdapter(logger))
	}

	conn, err := transport.Dial(transport.Options{Bus: cfg.Bus, Address: cfg.Address, Logger: logger})
	if err != nil {
		return err
	}
	defer conn.Close()

	svcCfg := service.DefaultConfig()
	svcCfg.AddDefaults = cfg.AddDefaults
	svcCfg.ConnectionTag = cfg.ConnectionTag
	svcCfg.Logger = logger
	if len(protoLoggers) > 0 {
		svcCfg.ProtocolLogger = log.NewMultiLogger(protoLoggers...)
	}
	svcCfg.S2Handlers = loggingS2Handlers(logger)

	svc, err := service.New(conn, &def.Service, def.Values, svcCfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := conn.RequestName(def.Service.Name); err != nil {
		return err
	}
	logger.Info("service running", "name", svc.Name(), "properties", len(svc.Registry().Names()),
		"s2", svc.S2() != nil, "connection_id", svc.ConnectionID())
	if fileLogger != nil {
		logger.Info("protocol logging enabled", "path", fileLogger.Path())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Interactive {
		console, err := interactive.New(svc)
		if err != nil {
			return err
		}
		sink.set(console.Stdout())
		console.Run(ctx, cancel)
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	if fileLogger != nil && fileLogger.Dropped() > 0 {
		logger.Warn("protocol log dropped events", "count", fileLogger.Dropped())
	}
	return nil
}

// loggingS2Handlers reports S2 session activity. A real resource manager
// embeds the service as a library and supplies its own handlers.
func loggingS2Handlers(logger *slog.Logger) s2.Handlers {
	return s2.Handlers{
		Connect: func(cemID string, interval int32) {
			logger.Info("S2 CEM connected", "cem_id", cemID, "keepalive", interval)
		},
		Disconnect: func(cemID string) {
			logger.Info("S2 CEM disconnected", "cem_id", cemID)
		},
		Message: func(cemID, message string) {
			logger.Info("S2 message", "cem_id", cemID, "message", message)
		},
		KeepAlive: func(cemID string) {
			logger.Debug("S2 keepalive", "cem_id", cemID)
		},
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <definition.yaml>",
	Short: "Validate a definition and show the object tree it exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(args[0], cmd.OutOrStdout())
	},
}

// runCheck exports the definition on an in-memory bus and prints the
// result.
func runCheck(path string, w io.Writer) error {
	def, err := model.LoadDefinition(path)
	if err != nil {
		return err
	}

	cfg := service.DefaultConfig()
	cfg.S2Handlers = loggingS2Handlers(slog.New(slog.DiscardHandler))
	bus := transport.NewMemoryBus(def.Service.Name)
	svc, err := service.New(bus, &def.Service, def.Values, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(w, "Service: %s\n", svc.Name())
	for _, warning := range svc.Warnings() {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	fmt.Fprintln(w, "Objects:")
	for _, p := range bus.Paths() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w, "Items:")
	for _, it := range svc.Registry().Project(nil, true) {
		fmt.Fprintf(w, "  %-28s %s\n", it.Key, it.Text)
	}
	return nil
}
