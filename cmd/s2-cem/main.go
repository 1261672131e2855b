// Command s2-cem is a minimal S2 Customer Energy Manager for exercising
// virtual devices that expose com.victronenergy.S2.
//
// It connects to one resource manager, keeps the session alive, prints
// every message the resource manager sends and forwards each line read
// from stdin as an S2 message.
//
// Usage:
//
//	s2-cem <service> [flags]
//
// Example:
//
//	s2-cem com.victronenergy.evcharger.virtual_1 --bus session
//	echo '{"message_type":"Handshake"}' | s2-cem com.victronenergy.heatpump.virtual_1
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
)

var (
	busFlag       string
	addressFlag   string
	pathFlag      string
	idFlag        string
	keepAliveFlag time.Duration
	verboseFlag   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "s2-cem <service>",
	Short:         "Minimal S2 energy manager for virtual devices",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&busFlag, "bus", transport.BusSystem, "Bus to connect to: system or session")
	f.StringVar(&addressFlag, "address", "", "Explicit bus address")
	f.StringVar(&pathFlag, "path", model.DefaultS2Path, "S2 object path")
	f.StringVar(&idFlag, "id", "", "CEM id (default: random UUID)")
	f.DurationVar(&keepAliveFlag, "keepalive", 30*time.Second, "Keepalive interval (whole seconds)")
	f.BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	if keepAliveFlag < time.Second {
		return fmt.Errorf("keepalive must be at least 1s, got %s", keepAliveFlag)
	}
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	id := idFlag
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := transport.Dial(transport.Options{Bus: busFlag, Address: addressFlag, Logger: logger})
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Subscribe before connecting so no early message is lost.
	signals, err := conn.Subscribe(ctx, transport.SignalMatch{
		Sender:    args[0],
		Path:      pathFlag,
		Interface: s2.InterfaceName,
	})
	if err != nil {
		return err
	}

	cem := NewCEM(conn, CEMConfig{
		Destination: args[0],
		Path:        pathFlag,
		ID:          id,
		KeepAlive:   keepAliveFlag.Truncate(time.Second),
		Logger:      logger,
	})
	if err := cem.Connect(ctx); err != nil {
		return err
	}

	go forwardStdin(ctx, cem, logger)

	out := cmd.OutOrStdout()
	err = cem.Run(ctx, signals, func(msg string) {
		fmt.Fprintln(out, msg)
	})
	if errors.Is(err, context.Canceled) {
		// Best effort; the resource manager also expires the session.
		dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer dcancel()
		if derr := cem.Disconnect(dctx); derr != nil {
			logger.Warn("disconnect failed", "error", derr)
		}
		return nil
	}
	return err
}

func forwardStdin(ctx context.Context, cem *CEM, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := cem.Send(ctx, line); err != nil {
			logger.Warn("sending message failed", "error", err)
		}
	}
}
