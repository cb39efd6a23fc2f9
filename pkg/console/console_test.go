package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out, Options{NoColor: true}), out
}

func TestChoose(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		warns int
	}{
		{name: "number", input: "2\n", want: 1},
		{name: "default", input: "\n", want: 0},
		{name: "padded", input: "  3 \n", want: 2},
		{name: "retry after invalid", input: "abc\n9\n3\n", want: 2, warns: 2},
		{name: "last line without newline", input: "2", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestConsole(tt.input)

			got, err := c.Choose(context.Background(), "Pick one:", []string{"a", "b", "c"})
			if err != nil {
				t.Fatalf("Choose failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}

			if n := strings.Count(out.String(), "Please enter a number between 1 and 3."); n != tt.warns {
				t.Errorf("Expected %d warnings, got %d", tt.warns, n)
			}
			if !strings.Contains(out.String(), "  2) b") {
				t.Errorf("Expected numbered menu, got %q", out.String())
			}
		})
	}
}

func TestChoose_InputClosed(t *testing.T) {
	c, _ := newTestConsole("x\n")

	_, err := c.Choose(context.Background(), "Pick one:", []string{"a"})
	if !errors.Is(err, engine.ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed, got %v", err)
	}
}

func TestChoose_ContextCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	c := New(r, &bytes.Buffer{}, Options{NoColor: true})
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Choose(ctx, "Pick one:", []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestChoose_LineSurvivesCancelledPrompt(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	c := New(r, &bytes.Buffer{}, Options{NoColor: true})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Choose(ctx, "Pick one:", []string{"a", "b"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// The line typed after the cancelled prompt goes to the next one.
	if _, err := w.WriteString("2\n"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := c.Choose(context.Background(), "Pick one:", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
}

func TestChoose_AfterClose(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	c := New(r, &bytes.Buffer{}, Options{NoColor: true})
	c.Close()

	if _, err := c.Choose(context.Background(), "Pick one:", []string{"a"}); !errors.Is(err, engine.ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		invalid bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "\n", want: true},
		{input: "n\n", want: false},
		{input: "No\n", want: false},
		{input: "maybe\n", want: true, invalid: true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			c, out := newTestConsole(tt.input)

			got, err := c.Confirm(context.Background(), "Continue?")
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}

			invalid := strings.Contains(out.String(), `Invalid input. Proceeding as if "Y" was entered.`)
			if invalid != tt.invalid {
				t.Errorf("Expected invalid notice %v, got output %q", tt.invalid, out.String())
			}
		})
	}
}

func TestConfirm_InputClosed(t *testing.T) {
	c, _ := newTestConsole("")

	if _, err := c.Confirm(context.Background(), "Continue?"); !errors.Is(err, engine.ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed, got %v", err)
	}
}

func TestCollectFields(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   engine.Fields
		notice bool
	}{
		{
			name:  "all fields",
			input: "Example\nexample.com, example.org,test.com\n2\ngkmg\nabcd\n",
			want: engine.Fields{
				"name":            {"Example"},
				"domains":         {"example.com", "example.org", "test.com"},
				"families[0][id]": {"gkmg"},
				"families[1][id]": {"abcd"},
			},
		},
		{
			name:  "all blank",
			input: "\n\n\n",
			want:  engine.Fields{},
		},
		{
			name:  "zero families",
			input: "Example\n\n0\n",
			want:  engine.Fields{"name": {"Example"}},
		},
		{
			name:   "invalid family count",
			input:  "\nexample.com\nthree\n",
			want:   engine.Fields{"domains": {"example.com"}},
			notice: true,
		},
		{
			name:  "blank family id skipped",
			input: "\n\n2\n\nabcd\n",
			want:  engine.Fields{"families[0][id]": {"abcd"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestConsole(tt.input)

			got, err := c.CollectFields(context.Background())
			if err != nil {
				t.Fatalf("CollectFields failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}

			text := out.String()
			if !strings.Contains(text, "Leave any field you don't wish to specify/update blank.") {
				t.Error("Expected the field preamble")
			}
			if notice := strings.Contains(text, "Invalid input, skipping Font Family input."); notice != tt.notice {
				t.Errorf("Expected family notice %v, got output %q", tt.notice, text)
			}
		})
	}
}

func TestCollectFields_InputClosed(t *testing.T) {
	c, _ := newTestConsole("Example\n")

	if _, err := c.CollectFields(context.Background()); !errors.Is(err, engine.ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed, got %v", err)
	}
}

func TestShowError(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "400 Bad Request", want: "The API indicated that the request was bad."},
		{message: "404 Not Found", want: "The API indicated that it couldn't find the resource."},
		{message: "500 Internal Server Error", want: "500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			c, out := newTestConsole("")
			c.ShowError(tt.message)

			if !strings.HasPrefix(out.String(), "An error occurred!\n") {
				t.Errorf("Expected error banner, got %q", out.String())
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("Expected %q in output, got %q", tt.want, out.String())
			}
		})
	}
}

func TestShowResource_YAML(t *testing.T) {
	out := &bytes.Buffer{}
	c := New(strings.NewReader(""), out, Options{NoColor: true, OutputFormat: "yaml"})

	c.ShowResource(&engine.Kit{ID: "abc1def", Name: "Example", Domains: []string{"example.com"}})

	for _, want := range []string{"kit:", "id: abc1def", "name: Example", "- example.com"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output, got %q", want, out.String())
		}
	}
}

func TestShowResource_Nil(t *testing.T) {
	c, out := newTestConsole("")
	c.ShowResource(nil)

	if out.Len() != 0 {
		t.Errorf("Expected no output, got %q", out.String())
	}
}

func TestSessionMessages(t *testing.T) {
	c, out := newTestConsole("")
	c.NotifyStart()
	c.ShowDeleted()
	c.NotifyEnd()

	want := "Welcome to kit_info!\nKit successfully deleted!\nThanks for using kit_info!\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// send feeds msgs to model in order and returns the final model.
func send(model tea.Model, msgs ...tea.Msg) tea.Model {
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	return model
}

func TestMenuModel(t *testing.T) {
	labels := []string{"a", "b", "c"}

	tests := []struct {
		name    string
		msgs    []tea.Msg
		outcome outcome
		choice  int
	}{
		{name: "enter picks first", msgs: []tea.Msg{key(tea.KeyEnter)}, outcome: answered, choice: 0},
		{name: "cursor", msgs: []tea.Msg{key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyEnter)}, outcome: answered, choice: 2},
		{name: "cursor up stops at top", msgs: []tea.Msg{key(tea.KeyUp), key(tea.KeyEnter)}, outcome: answered, choice: 0},
		{name: "typed number", msgs: []tea.Msg{runes("2"), key(tea.KeyEnter)}, outcome: answered, choice: 1},
		{name: "typed number wins over cursor", msgs: []tea.Msg{key(tea.KeyDown), runes("3"), key(tea.KeyCtrlJ)}, outcome: answered, choice: 2},
		{name: "backspace", msgs: []tea.Msg{runes("9"), key(tea.KeyBackspace), runes("1"), key(tea.KeyEnter)}, outcome: answered, choice: 0},
		{name: "out of range", msgs: []tea.Msg{runes("4"), key(tea.KeyEnter)}, outcome: invalid},
		{name: "not a number", msgs: []tea.Msg{runes("x"), key(tea.KeyEnter)}, outcome: invalid},
		{name: "ctrl+c", msgs: []tea.Msg{key(tea.KeyCtrlC)}, outcome: closed},
		{name: "esc", msgs: []tea.Msg{key(tea.KeyEsc)}, outcome: closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := send(newMenuModel("Pick one:", labels), tt.msgs...).(menuModel)

			if m.outcome != tt.outcome {
				t.Fatalf("Expected outcome %d, got %d", tt.outcome, m.outcome)
			}
			if tt.outcome == answered && m.choice != tt.choice {
				t.Errorf("Expected choice %d, got %d", tt.choice, m.choice)
			}
		})
	}
}

func TestMenuModel_View(t *testing.T) {
	m := newMenuModel("Pick one:", []string{"apple", "banana"})

	view := m.View()
	for _, want := range []string{"Pick one:", "1) apple", "2) banana"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in view %q", want, view)
		}
	}

	m = send(m, runes("2")).(menuModel)
	if !strings.Contains(m.View(), "Choice: 2") {
		t.Errorf("Expected the typed number in view %q", m.View())
	}

	m = send(m, key(tea.KeyEnter)).(menuModel)
	if got := m.View(); got != "Pick one: banana\n" {
		t.Errorf("Expected the answer as final view, got %q", got)
	}
}

func TestInputModel(t *testing.T) {
	m := send(newInputModel("Name:"),
		runes("Exa"), runes("mple"), tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, runes("Kit"), key(tea.KeyBackspace),
		key(tea.KeyEnter),
	).(inputModel)

	if m.outcome != answered {
		t.Fatalf("Expected answered, got %d", m.outcome)
	}
	if m.Value() != "Example Ki" {
		t.Errorf("Expected %q, got %q", "Example Ki", m.Value())
	}
	if m.View() != "Name: Example Ki\n" {
		t.Errorf("Unexpected final view %q", m.View())
	}

	m = send(newInputModel("Name:"), runes("x"), key(tea.KeyCtrlD)).(inputModel)
	if m.outcome != closed || m.View() != "" {
		t.Errorf("Expected a closed prompt, got outcome %d view %q", m.outcome, m.View())
	}
}
