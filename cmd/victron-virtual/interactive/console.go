// Package interactive provides the interactive console for a running
// virtual service.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"gopkg.in/yaml.v3"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/service"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Console handles interactive mode for victron-virtual.
type Console struct {
	svc *service.Service
	rl  *readline.Instance
	out io.Writer
}

// New creates a console reading commands from the terminal.
func New(svc *service.Service) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "virtual> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(svc),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(svc, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(svc *service.Service, out io.Writer) *Console {
	return &Console{svc: svc, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

func completer(svc *service.Service) readline.AutoCompleter {
	names := svc.Registry().Names()
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, n := range names {
		items[i] = readline.PcItem(n)
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("items"),
		readline.PcItem("get", items...),
		readline.PcItem("set", items...),
		readline.PcItem("emit"),
		readline.PcItem("s2"),
		readline.PcItem("s2-send"),
		readline.PcItem("warnings"),
		readline.PcItem("quit"),
	)
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Exec(line); quit {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns true when the console should
// exit.
func (c *Console) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "items", "ls":
		c.cmdItems()

	case "get", "g":
		c.cmdGet(args)

	case "set", "s":
		c.cmdSet(args)

	case "emit":
		c.svc.EmitItemsChanged()
		fmt.Fprintln(c.out, "ItemsChanged emitted")

	case "s2":
		c.cmdS2()

	case "s2-send":
		c.cmdS2Send(args)

	case "warnings":
		c.cmdWarnings()

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Virtual Service Commands:
  Properties:
    items                - List all properties with value and text
    get <name>           - Show one property
    set <name> <value>   - Set a property (use null to clear)
    emit                 - Emit ItemsChanged with every property

  S2:
    s2                   - Show the S2 session state
    s2-send <message>    - Send a Message signal to the connected CEM

  General:
    warnings             - Show setup warnings
    help                 - Show this help
    quit                 - Exit`)
}

func (c *Console) cmdItems() {
	for _, it := range c.svc.Registry().Project(nil, true) {
		fmt.Fprintf(c.out, "  %-28s %-12s %s\n", it.Key, it.Text, typeLabel(it.Value))
	}
}

func (c *Console) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: get <name>")
		return
	}
	name := model.Unslash(args[0])
	reg := c.svc.Registry()
	d, ok := reg.Declaration(name)
	if !ok {
		fmt.Fprintf(c.out, "Error: %v: %s\n", model.ErrUnknownProperty, name)
		return
	}
	v, _ := reg.Value(name)
	text, _ := reg.Text(name)
	fmt.Fprintf(c.out, "%s = %s (%s)\n", model.Slash(name), model.Stringify(v), text)
	if d.HasMin() || d.HasMax() {
		fmt.Fprintf(c.out, "  range: %v .. %v\n", bound(d.Min), bound(d.Max))
	}
	if d.ReadOnly {
		fmt.Fprintln(c.out, "  read-only")
	}
}

func (c *Console) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: set <name> <value>")
		fmt.Fprintln(c.out, "  Example: set Temperature 21.5")
		return
	}
	name := model.Unslash(args[0])
	d, ok := c.svc.Registry().Declaration(name)
	if !ok {
		fmt.Fprintf(c.out, "Error: %v: %s\n", model.ErrUnknownProperty, name)
		return
	}

	value, err := ParseValue(d, strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if err := c.svc.SetValuesLocally(map[string]any{name: value}); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	text, _ := c.svc.Registry().Text(name)
	fmt.Fprintf(c.out, "%s = %s\n", model.Slash(name), text)
}

func (c *Console) cmdS2() {
	session := c.svc.S2()
	if session == nil {
		fmt.Fprintln(c.out, "S2 is not enabled for this service")
		return
	}
	state := session.State()
	fmt.Fprintf(c.out, "S2 state: %s\n", state)
	if state == s2.StateConnected {
		fmt.Fprintf(c.out, "  CEM:        %s\n", session.ConnectedCEM())
		fmt.Fprintf(c.out, "  Keepalive:  %s\n", session.KeepAliveInterval())
		fmt.Fprintf(c.out, "  Last seen:  %s\n", session.LastSeen().Format(time.RFC3339))
	}
}

func (c *Console) cmdS2Send(args []string) {
	session := c.svc.S2()
	if session == nil {
		fmt.Fprintln(c.out, "S2 is not enabled for this service")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: s2-send <message>")
		return
	}
	if session.State() != s2.StateConnected {
		fmt.Fprintln(c.out, "No CEM connected")
		return
	}
	if err := session.EmitSignal(s2.SignalMessage, "", strings.Join(args, " ")); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Message sent to %s\n", session.ConnectedCEM())
}

func (c *Console) cmdWarnings() {
	warnings := c.svc.Warnings()
	if len(warnings) == 0 {
		fmt.Fprintln(c.out, "No warnings")
		return
	}
	for _, w := range warnings {
		fmt.Fprintf(c.out, "  - %s\n", w)
	}
}

// ParseValue converts console input to a native value for d. "null"
// clears the value; strings are taken verbatim; everything else is read
// as a YAML scalar or flow sequence, e.g. 21.5, true or [1, 2].
func ParseValue(d model.Declaration, text string) (any, error) {
	if text == "null" {
		return nil, nil
	}
	if d.Type == variant.TypeString || d.Type == variant.TypeUndeclared {
		return text, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", text, err)
	}
	return v, nil
}

func typeLabel(v variant.Variant) string {
	if v.IsNull() {
		return "null"
	}
	if v.Type == variant.TypeUndeclared {
		return "-"
	}
	return string(v.Type)
}

func bound(v any) string {
	if v == nil {
		return "-"
	}
	return model.Stringify(v)
}
