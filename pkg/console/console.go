// Package console implements engine.Surface on a terminal with Bubble Tea.
//
// Menus are bubbles lists that can be answered with the arrow keys or by
// typing an entry's number, and free text is read with bubbles text inputs.
// Every prompt has a default so pressing enter always moves the session
// forward. Ctrl+C, Ctrl+D, Esc and the end of input are reported as
// engine.ErrInputClosed.
//
// When the input is not a terminal, for example a pipe or a test, each prompt
// is fed one line of input and the console prints a plain transcript in
// place of the rendered view.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

// Output formats for ShowResource.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const (
	msgWelcome = "Welcome to kit_info!"
	msgGoodbye = "Thanks for using kit_info!"
)

// Options configures a Console.
type Options struct {
	// NoColor disables colored output. Color is also disabled when out is not a terminal.
	NoColor bool

	// OutputFormat selects how kits are displayed: "json" (default) or "yaml".
	OutputFormat string
}

// Console is an interactive engine.Surface reading answers from in and writing
// prompts and results to out.
type Console struct {
	out    io.Writer
	format string

	// tty is set when the input is a terminal; prompts then read it directly.
	tty *os.File

	// Scripted input is read by a single goroutine, one line per prompt.
	in        *bufio.Reader
	lines     chan lineResult
	startPump sync.Once
	done      chan struct{}
	closeOnce sync.Once
	eof       bool

	mu sync.Mutex

	errorColor *color.Color
	okColor    *color.Color
	warnColor  *color.Color
	titleColor *color.Color
}

var _ engine.Surface = (*Console)(nil)

// New creates a console.
func New(in io.Reader, out io.Writer, opts Options) *Console {
	format := strings.ToLower(strings.TrimSpace(opts.OutputFormat))
	if format != FormatYAML {
		format = FormatJSON
	}

	c := &Console{
		out:        out,
		format:     format,
		lines:      make(chan lineResult),
		done:       make(chan struct{}),
		errorColor: color.New(color.FgRed, color.Bold),
		okColor:    color.New(color.FgGreen),
		warnColor:  color.New(color.FgYellow),
		titleColor: color.New(color.Bold),
	}
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		c.tty = f
	} else {
		c.in = bufio.NewReader(in)
	}

	if opts.NoColor || !isTerminal(out) {
		for _, col := range []*color.Color{c.errorColor, c.okColor, c.warnColor, c.titleColor} {
			col.DisableColor()
		}
	}
	return c
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Close stops the scripted input reader. A read already blocked on the
// underlying reader returns only when that reader does.
func (c *Console) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// NotifyStart prints the welcome banner.
func (c *Console) NotifyStart() {
	c.println(c.titleColor.Sprint(msgWelcome))
}

// NotifyEnd prints the goodbye message.
func (c *Console) NotifyEnd() {
	c.println(msgGoodbye)
}

// Warn prints a notice.
func (c *Console) Warn(message string) {
	c.println(c.warnColor.Sprint(message))
}

// Fatal prints a message that ends the session.
func (c *Console) Fatal(message string) {
	c.println(c.errorColor.Sprint(message))
}

func (c *Console) println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

func (c *Console) print(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, text)
}

// run drives model until it quits and returns its final state. On a terminal
// the program owns the input and renders the view. Otherwise prompt and the
// next input line are printed, and the line followed by enter is the
// program's only input.
func (c *Console) run(ctx context.Context, model tea.Model, prompt string) (tea.Model, error) {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	}

	if c.tty != nil {
		opts = append(opts, tea.WithInput(c.tty), tea.WithOutput(c.out))
	} else {
		c.print(prompt + " ")
		line, err := c.nextLine(ctx)
		if err != nil {
			c.println("")
			return nil, err
		}
		c.println(line)
		opts = append(opts,
			tea.WithInput(strings.NewReader(line+"\r")),
			tea.WithOutput(io.Discard),
			tea.WithoutRenderer(),
		)
	}

	final, err := tea.NewProgram(model, opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}
	return final, nil
}

type lineResult struct {
	line string
	err  error
}

// pump reads scripted input line by line until the end of input or Close.
// It is the only reader of c.in, so a prompt abandoned on cancellation leaves
// its line to the next prompt.
func (c *Console) pump() {
	for {
		line, err := c.in.ReadString('\n')
		select {
		case c.lines <- lineResult{line: line, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// nextLine returns the next line of scripted input without its line ending.
// A final line without a newline is still returned; after that every call
// returns engine.ErrInputClosed.
func (c *Console) nextLine(ctx context.Context) (string, error) {
	if c.eof {
		return "", engine.ErrInputClosed
	}
	c.startPump.Do(func() { go c.pump() })

	var res lineResult
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", engine.ErrInputClosed
	case res = <-c.lines:
	}

	if res.err != nil {
		c.eof = true
		if !errors.Is(res.err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		if res.line == "" {
			return "", engine.ErrInputClosed
		}
	}
	return strings.TrimRight(res.line, "\r\n"), nil
}
