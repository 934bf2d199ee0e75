package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

// ConsolePrompt is printed before every command line.
const ConsolePrompt = "droneedit> "

// ConsoleUI is a line-oriented REPL over the Actions table, for sessions
// without a host UI or a desktop.
type ConsoleUI struct {
	ws     *app.Workspace
	in     *bufio.Scanner
	out    io.Writer
	logger *slog.Logger

	mu   sync.Mutex // guards out
	root *cobra.Command
	quit bool
}

func NewConsoleUI(ws *app.Workspace, in io.Reader, out io.Writer, logger *slog.Logger) *ConsoleUI {
	return &ConsoleUI{
		ws:     ws,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logging.WithComponent(logging.OrDiscard(logger), "console"),
	}
}

func (c *ConsoleUI) Name() string { return "console" }

func (c *ConsoleUI) Init(context.Context) error {
	if c.root == nil {
		c.root = c.commands()
	}
	st := c.ws.Status()
	if st.Connected {
		c.printf("DroneEdit console, connected to %s %s. Type help for commands.\n", st.Product, st.HostVersion)
	} else {
		c.printf("DroneEdit console, no host connected: only project files and settings are available. Type help for commands.\n")
	}
	return nil
}

// Run reads commands until quit, end of input or ctx ends.
func (c *ConsoleUI) Run(ctx context.Context) error {
	for ctx.Err() == nil && !c.quit {
		c.printf("%s", ConsolePrompt)
		if !c.in.Scan() {
			c.printf("\n")
			return c.in.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		args, err := splitArgs(line)
		if err != nil {
			c.printf("error: %v\n", err)
			continue
		}
		c.root.SetArgs(args)
		if err := c.root.ExecuteContext(ctx); err != nil {
			c.printf("error: %v\n", err)
		}
	}
	return nil
}

func (c *ConsoleUI) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "droneedit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(c.out)
	root.SetErr(c.out)

	for _, a := range actions {
		use := a.Usage
		if use == "" {
			use = a.Name
		}
		name := a.Name
		root.AddCommand(&cobra.Command{
			Use:   use,
			Short: a.Title,
			Args:  cobra.ArbitraryArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				// Dispatch already reported the outcome.
				_ = Dispatch(cmd.Context(), c.ws, c, name, args)
				return nil
			},
		})
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "set <key> <value>",
			Short:              "Change a setting",
			Args:               cobra.MinimumNArgs(2),
			DisableFlagParsing: true,
			RunE:               c.setSetting,
		},
		&cobra.Command{
			Use:   "settings",
			Short: "Show the live settings",
			Args:  cobra.NoArgs,
			RunE:  c.showSettings,
		},
		&cobra.Command{
			Use:   "tasks",
			Short: "List recent tasks",
			Args:  cobra.NoArgs,
			RunE:  c.showTasks,
		},
		&cobra.Command{
			Use:   "recent",
			Short: "List recent projects",
			Args:  cobra.NoArgs,
			RunE:  c.showRecent,
		},
		&cobra.Command{
			Use:   "cancel [task id]",
			Short: "Cancel a running task, or all of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					c.ws.CancelAll()
					c.printf("cancel requested\n")
					return nil
				}
				if !c.ws.Cancel(args[0]) {
					return fmt.Errorf("no running task %s", args[0])
				}
				c.printf("cancel requested for %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "Leave the console",
			Args:    cobra.NoArgs,
			Run:     func(*cobra.Command, []string) { c.quit = true },
		},
	)
	return root
}

// setSetting parses the value as YAML so numbers and booleans keep their
// type: "set auto_volume false" stores a bool.
func (c *ConsoleUI) setSetting(_ *cobra.Command, args []string) error {
	key := args[0]
	raw := strings.Join(args[1:], " ")
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		v = raw
	}
	if errs := c.ws.UpdateSettings(map[string]any{key: v}); len(errs) > 0 {
		return errs[0]
	}
	c.printf("%s updated\n", key)
	return nil
}

func (c *ConsoleUI) showSettings(*cobra.Command, []string) error {
	m := c.ws.Settings().ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.printf("%-22s %v\n", k, m[k])
	}
	return nil
}

func (c *ConsoleUI) showTasks(cmd *cobra.Command, _ []string) error {
	tasks, err := c.ws.Tasks(cmd.Context(), 20)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		c.printf("no tasks\n")
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%s  %-14s %-10s %3d%%", shortID(t.ID), t.Kind, t.Status, t.Progress)
		if t.Error != "" {
			line += "  " + t.Error
		}
		c.printf("%s\n", line)
	}
	return nil
}

func (c *ConsoleUI) showRecent(cmd *cobra.Command, _ []string) error {
	projects, err := c.ws.RecentProjects(cmd.Context(), 10)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		c.printf("no recent projects\n")
	}
	for _, p := range projects {
		c.printf("%-20s %s\n", p.Name, p.Path)
	}
	return nil
}

func (c *ConsoleUI) Alert(_ context.Context, title, message string) {
	c.printf("[%s] %s\n", title, message)
}

func (c *ConsoleUI) Progress(_ context.Context, title string, percent int) {
	c.printf("  %s %d%%\n", title, percent)
}

// PromptPath reads the answer from the next input line. An empty line or
// end of input is a cancel.
func (c *ConsoleUI) PromptPath(ctx context.Context, title string, kind PathKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.printf("%s (%s path, empty to cancel): ", title, kind)
	if !c.in.Scan() {
		return "", ErrCancelled
	}
	path := strings.TrimSpace(c.in.Text())
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}

func (c *ConsoleUI) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits on spaces, keeping "double" or 'single' quoted runs
// together.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		open  bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			open = true
		case r == ' ' || r == '\t':
			if cur.Len() > 0 || open {
				args = append(args, cur.String())
				cur.Reset()
				open = false
			}
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if cur.Len() > 0 || open {
		args = append(args, cur.String())
	}
	return args, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
