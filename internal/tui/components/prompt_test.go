package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func typeText(p Prompt, s string) Prompt {
	p, _, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return p
}

func TestPrompt_NameFilterAcceptsEmpty(t *testing.T) {
	p := NewPrompt()
	p.Open(PromptNameFilter, "dsc")
	assert.Equal(t, "dsc", p.Value())
	assert.Contains(t, p.View(), "Filter by name")

	p.Open(PromptNameFilter, "  ")
	p, _, action := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PromptSubmitted, action)
	assert.False(t, p.IsOpen())
	assert.Equal(t, "", p.Value())
}

func TestPrompt_JumpNeedsAName(t *testing.T) {
	p := NewPrompt()
	p.Open(PromptJump, "")

	p, _, action := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PromptEditing, action)
	assert.True(t, p.IsOpen())
	assert.Contains(t, p.View(), "type part of a file name")

	p = typeText(p, "img_12")
	assert.NotContains(t, p.View(), "type part of a file name")
	p, _, action = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PromptSubmitted, action)
	assert.Equal(t, PromptJump, p.Kind())
	assert.Equal(t, "img_12", p.Value())
}

func TestPrompt_EscapeCancels(t *testing.T) {
	p := NewPrompt()
	p.Open(PromptJump, "x")
	p, _, action := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, PromptCancelled, action)
	assert.False(t, p.IsOpen())
	assert.Empty(t, p.View())
}
