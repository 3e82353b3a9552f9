package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const consoleHelp = `Commands:
  <text>               send text to the brain
  /connect             connect to the brain
  /disconnect          disconnect from the brain
  /reconnect           reconnect and clear the speech bubble
  /status              show connection and face state
  /presets             list expression presets
  /preset <name>       apply a preset (aliases work too)
  /next, /prev         cycle the expression tester
  /clear               clear the speech bubble
  /bg                  show the background color
  /bg <r> <g> <b>      set the background color
  /bg reset            restore the default background
  /logs [n]            show the last n log entries (default 20)
  /diag                show warnings and errors
  /quit                exit`

// Console is a line-oriented debug surface over the bridges
type Console struct {
	avatar     *AvatarBridge
	connection *ConnectionBridge
	settings   *SettingsBridge
	logs       *LogBridge
	out        io.Writer
}

// NewConsole creates a console writing replies to out
func NewConsole(avatar *AvatarBridge, connection *ConnectionBridge, settings *SettingsBridge, logs *LogBridge, out io.Writer) *Console {
	return &Console{
		avatar:     avatar,
		connection: connection,
		settings:   settings,
		logs:       logs,
		out:        out,
	}
}

// Run executes commands read from in until EOF, /quit or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			if !c.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs one command line. It reports false when the console should
// stop.
func (c *Console) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if !strings.HasPrefix(input, "/") {
		if c.connection.SendInput(input) && !c.connection.IsConnected() {
			c.printf("Not connected; input dropped\n")
		}
		return true
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return false
	case "/help", "/?":
		c.printf("%s\n", consoleHelp)
	case "/connect":
		c.connection.Connect()
	case "/disconnect":
		c.connection.Disconnect()
	case "/reconnect":
		c.connection.Reconnect()
	case "/status":
		c.printStatus()
	case "/presets":
		current := c.avatar.CurrentExpression()
		for _, name := range c.avatar.ListExpressions() {
			marker := " "
			if name == current {
				marker = "*"
			}
			c.printf("%s %s\n", marker, name)
		}
	case "/preset":
		if len(args) == 0 {
			c.printf("Usage: /preset <name>\n")
			break
		}
		name := strings.Join(args, " ")
		if !c.avatar.SelectExpression(name) {
			// Not canonical: let the face resolve it like a brain emotion.
			c.avatar.SetEmotion(name)
		}
	case "/next":
		c.printf("Expression: %s\n", c.avatar.NextExpression())
	case "/prev":
		c.printf("Expression: %s\n", c.avatar.PrevExpression())
	case "/clear":
		c.avatar.ResetSpeech()
	case "/bg":
		c.background(args)
	case "/logs":
		limit := 20
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		for _, e := range c.logs.GetLogHistory(limit) {
			c.printf("%s\n", Render(e))
		}
	case "/diag":
		diags := c.logs.GetDiagnostics()
		if len(diags) == 0 {
			c.printf("No diagnostics\n")
		}
		for _, e := range diags {
			c.printf("%s\n", Render(e))
		}
	default:
		c.printf("Unknown command %s (try /help)\n", cmd)
	}
	return true
}

func (c *Console) printStatus() {
	snap := c.avatar.GetState()
	c.printf("Brain:    %s (%s)\n", c.connection.GetServerURL(), snap.Connection.Label())
	c.printf("Face:     %s\n", snap.Face)
	if snap.HasLastStable {
		c.printf("Stable:   %s/%s\n", snap.LastStable.Eyes, snap.LastStable.Mouth)
	}
	c.printf("Speech:   %s\n", snap.DisplayText())
	c.printf("Contract: %s", snap.ContractVersion)
	if snap.ContractMismatch() {
		c.printf(" (brain has %s)", snap.BrainContractVersion)
	}
	c.printf("\n")
}

func (c *Console) background(args []string) {
	switch {
	case len(args) == 0:
		c.printf("Background: %s\n", Render(c.settings.GetBackground()))
	case len(args) == 1 && strings.EqualFold(args[0], "reset"):
		if color, err := c.settings.ResetBackground(); err != nil {
			c.printf("Error: %v\n", err)
		} else {
			c.printf("Background: %s\n", Render(color))
		}
	case len(args) == 3:
		var ch [3]int
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				c.printf("Channels must be integers\n")
				return
			}
			ch[i] = n
		}
		if color, err := c.settings.SetBackground(ch[0], ch[1], ch[2]); err != nil {
			c.printf("Error: %v\n", err)
		} else {
			c.printf("Background: %s\n", Render(color))
		}
	default:
		c.printf("Usage: /bg [<r> <g> <b> | reset]\n")
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
