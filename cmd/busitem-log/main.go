// Command busitem-log views and analyzes protocol log files written by
// victron-virtual with --protocol-log.
//
// Usage:
//
//	busitem-log <command> [flags] <file.bilog>
//
// Examples:
//
//	# View all events
//	busitem-log view tank.bilog
//
//	# View only S2 session traffic of one CEM
//	busitem-log view --layer session --cem-id 3f2a... tank.bilog
//
//	# View writes to one property
//	busitem-log view --member SetValue --path /Level tank.bilog
//
//	# Export to JSONL
//	busitem-log export --format jsonl tank.bilog
//
//	# Filter by connection and save to new file
//	busitem-log filter --conn-id abc12345-... -o filtered.bilog tank.bilog
//
//	# Show statistics
//	busitem-log stats tank.bilog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chris927/dbus-victron-virtual/cmd/busitem-log/commands"
	"github.com/Chris927/dbus-victron-virtual/pkg/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "busitem-log",
	Short:         "BusItem protocol log analyzer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var viewFlags struct {
	layer     string
	direction string
	category  string
	service   string
	path      string
	member    string
	cemID     string
}

var viewCmd = &cobra.Command{
	Use:   "view [flags] <file.bilog>",
	Short: "View log file in human-readable format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := commands.ViewFilter{
			Service: viewFlags.service,
			Path:    viewFlags.path,
			Member:  viewFlags.member,
			CEMID:   viewFlags.cemID,
		}

		if viewFlags.layer != "" {
			l, err := commands.ParseLayerFlag(viewFlags.layer)
			if err != nil {
				return err
			}
			filter.Layer = &l
		}
		if viewFlags.direction != "" {
			d, err := commands.ParseDirectionFlag(viewFlags.direction)
			if err != nil {
				return err
			}
			filter.Direction = &d
		}
		if viewFlags.category != "" {
			c, err := commands.ParseCategoryFlag(viewFlags.category)
			if err != nil {
				return err
			}
			filter.Category = &c
		}

		return commands.RunView(args[0], filter, cmd.OutOrStdout())
	},
}

var exportFlags struct {
	format string
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export [flags] <file.bilog>",
	Short: "Export log file to JSON or CSV format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.RunExport(args[0], exportFlags.format, exportFlags.output)
	},
}

var filterOpts commands.FilterOptions

var filterCmd = &cobra.Command{
	Use:   "filter [flags] <file.bilog>",
	Short: "Filter log file and write to new file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := commands.RunFilter(args[0], filterOpts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, filterOpts.Output)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file.bilog>",
	Short: "Show statistics about the log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.RunStats(args[0], cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "busitem-log %s\n", version.Current)
	},
}

func init() {
	vf := viewCmd.Flags()
	vf.StringVar(&viewFlags.layer, "layer", "", "Filter by layer (transport, service, session)")
	vf.StringVar(&viewFlags.direction, "direction", "", "Filter by direction (in, out)")
	vf.StringVar(&viewFlags.category, "category", "", "Filter by category (call, signal, state, error)")
	vf.StringVar(&viewFlags.service, "service", "", "Filter by service bus name")
	vf.StringVar(&viewFlags.path, "path", "", "Filter by object path (/Mgmt/* for a subtree)")
	vf.StringVar(&viewFlags.member, "member", "", "Filter by method or signal name")
	vf.StringVar(&viewFlags.cemID, "cem-id", "", "Filter S2 traffic by CEM id")

	ef := exportCmd.Flags()
	ef.StringVar(&exportFlags.format, "format", "jsonl", "Output format (jsonl, csv)")
	ef.StringVarP(&exportFlags.output, "output", "o", "", "Output file (default: stdout)")

	ff := filterCmd.Flags()
	ff.StringVarP(&filterOpts.Output, "output", "o", "", "Output file (required)")
	ff.StringVar(&filterOpts.ConnID, "conn-id", "", "Filter by connection ID")
	ff.StringVar(&filterOpts.Service, "service", "", "Filter by service bus name")
	ff.StringVar(&filterOpts.Path, "path", "", "Filter by object path (/Mgmt/* for a subtree)")
	ff.StringVar(&filterOpts.Member, "member", "", "Filter by method or signal name")
	ff.StringVar(&filterOpts.CEMID, "cem-id", "", "Filter S2 traffic by CEM id")
	ff.StringVar(&filterOpts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	ff.StringVar(&filterOpts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	ff.StringVar(&filterOpts.Layer, "layer", "", "Filter by layer (transport, service, session)")
	ff.StringVar(&filterOpts.Direction, "direction", "", "Filter by direction (in, out)")
	ff.StringVar(&filterOpts.Category, "category", "", "Filter by category (call, signal, state, error)")
	_ = filterCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(viewCmd, exportCmd, filterCmd, statsCmd, versionCmd)
}
