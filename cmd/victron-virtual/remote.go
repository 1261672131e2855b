package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Chris927/dbus-victron-virtual/cmd/victron-virtual/interactive"
	"github.com/Chris927/dbus-victron-virtual/pkg/interaction"
	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
	"github.com/Chris927/dbus-victron-virtual/pkg/version"
)

var errBadType = errors.New("unsupported type")

// Flags shared by the commands that talk to other services.
var (
	remoteTimeout time.Duration
	remoteType    string
	settingMin    string
	settingMax    string
	peerName      string
)

func addRemoteCommands(root *cobra.Command) {
	for _, c := range []*cobra.Command{getCmd, setCmd, watchCmd, settingsCmd} {
		c.PersistentFlags().DurationVar(&remoteTimeout, "timeout", 5*time.Second, "Call timeout")
		addBusFlags(c)
		root.AddCommand(c)
	}
	setCmd.Flags().StringVarP(&remoteType, "type", "t", "", "Value type: b, s, i, d, ai, ad, as (default: inferred)")
	settingsAddCmd.Flags().StringVarP(&remoteType, "type", "t", "", "Setting type: i, d, s (default: inferred)")
	settingsAddCmd.Flags().StringVar(&settingMin, "min", "", "Minimum value")
	settingsAddCmd.Flags().StringVar(&settingMax, "max", "", "Maximum value")
	settingsCmd.AddCommand(settingsAddCmd, settingsRemoveCmd)

	versionCmd.Flags().StringVar(&peerName, "peer", "", "Compare with the Mgmt/ProcessVersion of this service")
	addBusFlags(versionCmd)
}

// addBusFlags adds the connection flags, which also resolve through the
// config file and environment.
func addBusFlags(c *cobra.Command) {
	c.PersistentFlags().String("bus", "system", "Bus to connect to: system or session")
	c.PersistentFlags().String("address", "", "Explicit bus address")
}

// dialFromFlags loads the bus settings and connects.
func dialFromFlags(cmd *cobra.Command) (*transport.Conn, error) {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return transport.Dial(transport.Options{
		Bus:     cfg.Bus,
		Address: cfg.Address,
		Logger:  newLogger(os.Stderr, cfg.LogLevel),
	})
}

func parseType(s string) (variant.Type, error) {
	t := variant.Type(s)
	if t != variant.TypeUndeclared && !t.Known() {
		return "", fmt.Errorf("%w: %q", errBadType, s)
	}
	return t, nil
}

// parseArg reads a command-line value the way the console does.
func parseArg(t variant.Type, text string) (any, error) {
	if t == variant.TypeUndeclared {
		// Without a type, numbers and booleans are still recognized.
		return interactive.ParseValue(model.Declaration{Type: variant.TypeDouble}, text)
	}
	return interactive.ParseValue(model.Declaration{Type: t}, text)
}

func formatVariant(v variant.Variant) string {
	if v.IsNull() {
		return "null"
	}
	native, err := variant.Decode(v)
	if err != nil {
		return v.String()
	}
	return model.Stringify(native)
}

var getCmd = &cobra.Command{
	Use:   "get <service> <path>",
	Short: "Read a value with its bounds from another service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
		defer cancel()
		return runGet(ctx, interaction.NewClient(conn), args[0], args[1], cmd.OutOrStdout())
	},
}

func runGet(ctx context.Context, client *interaction.Client, dest, path string, w io.Writer) error {
	target := interaction.Target{Destination: dest, Path: path}
	v, err := client.GetValue(ctx, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s = %s\n", dest, path, formatVariant(v))

	// Bounds are optional on the remote side.
	if lo, err := client.GetMin(ctx, target); err == nil && !lo.IsNull() {
		fmt.Fprintf(w, "  min: %s\n", formatVariant(lo))
	}
	if hi, err := client.GetMax(ctx, target); err == nil && !hi.IsNull() {
		fmt.Fprintf(w, "  max: %s\n", formatVariant(hi))
	}
	return nil
}

var setCmd = &cobra.Command{
	Use:   "set <service> <path> <value>",
	Short: "Write a value on another service",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseType(remoteType)
		if err != nil {
			return err
		}
		value, err := parseArg(t, args[2])
		if err != nil {
			return err
		}

		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
		defer cancel()
		client := interaction.NewClient(conn, interaction.WithLogger(newLogger(os.Stderr, slog.LevelWarn)))
		status, err := client.SetValue(ctx, interaction.Target{Destination: args[0], Path: args[1]}, value, t)
		if err != nil {
			return err
		}
		if status != 0 {
			return fmt.Errorf("%s %s rejected the value (status %d)", args[0], args[1], status)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <service> [path...]",
	Short: "Print the items of another service as they change",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		out := cmd.OutOrStdout()
		sub := interaction.NewSubscription(args[0], args[1:]...)
		err = interaction.NewClient(conn).Watch(ctx, conn, sub, func(items []model.Item) {
			printItems(out, items)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func printItems(w io.Writer, items []model.Item) {
	ts := time.Now().Format("15:04:05.000")
	for _, it := range items {
		fmt.Fprintf(w, "%s %-32s %-12s %s\n", ts, it.Key, formatVariant(it.Value), it.Text)
	}
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage entries of com.victronenergy.settings",
}

var settingsAddCmd = &cobra.Command{
	Use:   "add <path> <default>",
	Short: "Create a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSetting(args[0], args[1], remoteType, settingMin, settingMax)
		if err != nil {
			return err
		}

		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
		defer cancel()
		reply, err := interaction.NewClient(conn).AddSettings(ctx, []interaction.Setting{s})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", reply)
		return nil
	},
}

// buildSetting converts command-line arguments to a Setting. Empty bounds
// stay unset.
func buildSetting(path, def, typ, lo, hi string) (interaction.Setting, error) {
	t, err := parseType(typ)
	if err != nil {
		return interaction.Setting{}, err
	}
	s := interaction.Setting{Path: path, Type: t}
	if s.Default, err = parseArg(t, def); err != nil {
		return interaction.Setting{}, err
	}
	boundType := t
	if boundType == variant.TypeUndeclared {
		boundType = variant.TypeDouble
	}
	if lo != "" {
		if s.Min, err = parseArg(boundType, lo); err != nil {
			return interaction.Setting{}, err
		}
	}
	if hi != "" {
		if s.Max, err = parseArg(boundType, hi); err != nil {
			return interaction.Setting{}, err
		}
	}
	return s, nil
}

var settingsRemoveCmd = &cobra.Command{
	Use:   "remove <path>...",
	Short: "Delete settings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		settings := make([]interaction.Setting, len(args))
		for i, p := range args {
			settings[i] = interaction.Setting{Path: p}
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout)
		defer cancel()
		reply, err := interaction.NewClient(conn).RemoveSettings(ctx, settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", reply)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", version.ProcessName, version.Current)
		if peerName == "" {
			return nil
		}

		conn, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return runPeerVersion(ctx, interaction.NewClient(conn), peerName, out)
	},
}

// runPeerVersion reports whether another virtual service runs a compatible
// version.
func runPeerVersion(ctx context.Context, client *interaction.Client, peer string, w io.Writer) error {
	own, err := version.Parse(version.Current)
	if err != nil {
		return err
	}
	v, err := client.GetValue(ctx, interaction.Target{Destination: peer, Path: "/Mgmt/ProcessVersion"})
	if err != nil {
		return err
	}
	s, ok := v.Value.(string)
	if !ok {
		return fmt.Errorf("%s: Mgmt/ProcessVersion is %s, not a string", peer, v)
	}
	other, err := version.Parse(s)
	if err != nil {
		return err
	}

	switch {
	case !own.Compatible(other):
		fmt.Fprintf(w, "%s runs %s: incompatible\n", peer, other)
	case own.Compare(other) < 0:
		fmt.Fprintf(w, "%s runs %s: newer\n", peer, other)
	case own.Compare(other) > 0:
		fmt.Fprintf(w, "%s runs %s: older\n", peer, other)
	default:
		fmt.Fprintf(w, "%s runs %s: same\n", peer, other)
	}
	return nil
}
