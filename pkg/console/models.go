package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	menuWidth     = 60
	maxMenuHeight = 20

	// lines taken by the title, pagination and help around the entries
	menuChrome = 6
)

type outcome int

const (
	pending outcome = iota
	answered
	invalid
	closed
)

// isCloseKey reports whether k abandons the prompt.
func isCloseKey(k tea.KeyMsg) bool {
	switch k.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
		return true
	}
	return false
}

// isSubmitKey reports whether k submits the prompt. Piped input ends lines
// with a bare line feed, which arrives as ctrl+j.
func isSubmitKey(k tea.KeyMsg) bool {
	return k.Type == tea.KeyEnter || k.Type == tea.KeyCtrlJ
}

type menuItem struct {
	index int
	label string
}

func (i menuItem) Title() string       { return fmt.Sprintf("%d) %s", i.index+1, i.label) }
func (i menuItem) Description() string { return "" }
func (i menuItem) FilterValue() string { return i.label }

// menuModel is a list answered with the cursor or by typing an entry's number.
type menuModel struct {
	list    list.Model
	typed   string
	outcome outcome
	choice  int
}

func newMenuModel(prompt string, labels []string) menuModel {
	items := make([]list.Item, len(labels))
	for i, label := range labels {
		items[i] = menuItem{index: i, label: label}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, menuWidth, min(len(labels)+menuChrome, maxMenuHeight))
	l.Title = prompt
	l.Styles.Title = lipgloss.NewStyle().Bold(true)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return menuModel{list: l}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch {
		case isCloseKey(msg):
			m.outcome = closed
			return m, tea.Quit
		case isSubmitKey(msg):
			m.choice, m.outcome = m.resolve()
			return m, tea.Quit
		case msg.Type == tea.KeyRunes:
			m.typed += string(msg.Runes)
			return m, nil
		case msg.Type == tea.KeySpace:
			m.typed += " "
			return m, nil
		case msg.Type == tea.KeyBackspace && m.typed != "":
			r := []rune(m.typed)
			m.typed = string(r[:len(r)-1])
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// resolve picks the typed number, or the entry under the cursor when nothing
// was typed.
func (m menuModel) resolve() (int, outcome) {
	typed := strings.TrimSpace(m.typed)
	if typed == "" {
		return m.list.Index(), answered
	}

	n, err := strconv.Atoi(typed)
	if err != nil || n < 1 || n > len(m.list.Items()) {
		return 0, invalid
	}
	return n - 1, answered
}

func (m menuModel) View() string {
	switch m.outcome {
	case answered:
		item, _ := m.list.Items()[m.choice].(menuItem)
		return m.list.Title + " " + item.label + "\n"
	case pending:
		if m.typed != "" {
			return m.list.View() + "\n  Choice: " + m.typed
		}
		return m.list.View()
	default:
		return ""
	}
}

// inputModel reads one line of free text.
type inputModel struct {
	input   textinput.Model
	outcome outcome
}

func newInputModel(prompt string) inputModel {
	ti := textinput.New()
	ti.Prompt = prompt + " "
	ti.Focus()
	return inputModel{input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case isCloseKey(k):
			m.outcome = closed
			return m, tea.Quit
		case isSubmitKey(k):
			m.outcome = answered
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Value returns the text entered so far.
func (m inputModel) Value() string {
	return m.input.Value()
}

func (m inputModel) View() string {
	switch m.outcome {
	case answered:
		return m.input.Prompt + m.input.Value() + "\n"
	case pending:
		return m.input.View()
	default:
		return ""
	}
}
