// Package prompt asks for project names during drop registration.
package prompt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorDim  = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorCyan = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}

	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleHint  = lipgloss.NewStyle().Foreground(colorDim)
)

// nameModel is a single-line text input that ends on enter or escape.
type nameModel struct {
	title     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newNameModel(title, initial string) nameModel {
	ti := textinput.New()
	ti.Placeholder = "project name"
	ti.CharLimit = 120
	ti.Width = 48
	ti.SetValue(initial)
	ti.Focus()
	return nameModel{title: title, input: ti}
}

func (m nameModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m nameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m nameModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s\n%s\n%s\n",
		styleTitle.Render(m.title),
		m.input.View(),
		styleHint.Render("enter to confirm, esc to cancel"))
}

func (m nameModel) Value() string {
	return strings.TrimSpace(m.input.Value())
}

// Terminal prompts on a terminal with a bubbletea text input.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t Terminal) PromptName(title, initial string) (string, bool, error) {
	p := tea.NewProgram(newNameModel(title, initial), tea.WithInput(t.In), tea.WithOutput(t.Out))
	final, err := p.Run()
	if err != nil {
		return "", false, err
	}
	m, ok := final.(nameModel)
	if !ok || m.cancelled {
		return "", false, nil
	}
	return m.Value(), true, nil
}

// Static answers without a terminal. The first prompt gets Name (or the
// offered default when Name is empty). Later prompts, which follow a name
// conflict, accept the offered suggestion only when AcceptSuggestions is set.
type Static struct {
	Name              string
	AcceptSuggestions bool
	MaxAttempts       int

	calls int
}

func (s *Static) PromptName(_, initial string) (string, bool, error) {
	s.calls++
	limit := s.MaxAttempts
	if limit <= 0 {
		limit = 5
	}
	switch {
	case s.calls > limit:
		return "", false, nil
	case s.calls == 1 && s.Name != "":
		return s.Name, true, nil
	case s.calls == 1 || s.AcceptSuggestions:
		return initial, true, nil
	default:
		return "", false, nil
	}
}
