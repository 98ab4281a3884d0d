package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/culler/internal/tui/styles"
)

// PromptKind is what a submitted prompt is for
type PromptKind int

const (
	PromptNameFilter PromptKind = iota // Narrow the view to matching names
	PromptJump                         // Move to the best fuzzy match
)

// PromptAction reports what a key did to the prompt
type PromptAction int

const (
	PromptEditing PromptAction = iota
	PromptSubmitted
	PromptCancelled
)

type promptSpec struct {
	title       string
	placeholder string
	hint        string
	allowEmpty  bool // An empty submission is meaningful
}

var promptSpecs = map[PromptKind]promptSpec{
	PromptNameFilter: {
		title:       "Filter by name",
		placeholder: "part of a file name",
		hint:        "enter applies, empty shows all",
		allowEmpty:  true,
	},
	PromptJump: {
		title:       "Jump to file",
		placeholder: "fuzzy file name",
		hint:        "enter jumps to the closest name",
	},
}

const promptWidth = 40

// Prompt is the one-line question shown over the image for name filters
// and jumps. The kind decides its wording and what it accepts.
type Prompt struct {
	kind    PromptKind
	open    bool
	problem string
	input   textinput.Model
}

// NewPrompt creates a closed prompt
func NewPrompt() Prompt {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = promptWidth - 4
	ti.Prompt = "› "
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle
	return Prompt{input: ti}
}

// Open shows the prompt for kind, prefilled with value
func (p *Prompt) Open(kind PromptKind, value string) {
	p.kind = kind
	p.open = true
	p.problem = ""
	p.input.Placeholder = promptSpecs[kind].placeholder
	p.input.SetValue(value)
	p.input.CursorEnd()
	p.input.Focus()
}

// Close hides the prompt
func (p *Prompt) Close() {
	p.open = false
	p.input.Blur()
}

// IsOpen reports whether the prompt is shown
func (p Prompt) IsOpen() bool { return p.open }

// Kind returns what the prompt was opened for
func (p Prompt) Kind() PromptKind { return p.kind }

// Value returns the typed text without surrounding spaces
func (p Prompt) Value() string {
	return strings.TrimSpace(p.input.Value())
}

// Update feeds msg to the prompt. Enter submits unless the kind needs a
// value and none was typed; the prompt then stays open and says so.
func (p Prompt) Update(msg tea.Msg) (Prompt, tea.Cmd, PromptAction) {
	if !p.open {
		return p, nil, PromptEditing
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			if p.Value() == "" && !promptSpecs[p.kind].allowEmpty {
				p.problem = "type part of a file name"
				return p, nil, PromptEditing
			}
			p.Close()
			return p, nil, PromptSubmitted
		case tea.KeyEsc:
			p.Close()
			return p, nil, PromptCancelled
		}
	}

	p.problem = ""
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd, PromptEditing
}

// View renders the prompt box
func (p Prompt) View() string {
	if !p.open {
		return ""
	}
	spec := promptSpecs[p.kind]

	line := styles.DimStyle.Render(spec.hint)
	if p.problem != "" {
		line = styles.ErrorStyle.Render(p.problem)
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render(spec.title),
		"",
		p.input.View(),
		"",
		line,
	)
	return styles.ModalStyle.Width(promptWidth).Render(content)
}
