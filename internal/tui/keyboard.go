package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/tui/components"
)

// shiftedDigits maps the shifted number row to a minimum rating
var shiftedDigits = map[string]domain.Rating{"!": 1, "@": 2, "#": 3, "$": 4, "%": 5}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle state-specific keys
	switch m.State {
	case StateHelp:
		m.State = StateReviewing
		m.Help.ShowAll = false
		return m, nil

	case StatePrompt:
		return m.handlePromptKey(msg)
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		m.Help.ShowAll = true
		return m, nil

	case key.Matches(msg, Keys.Escape):
		// Escape clears a name filter back to everything
		if m.nameFilter != "" {
			m.nameFilter = ""
			m.Review.SetFilter(navigation.All())
		}
		return m, nil

	// Navigation
	case key.Matches(msg, Keys.Next):
		m.Review.Advance(1)
	case key.Matches(msg, Keys.Prev):
		m.Review.Advance(-1)
	case key.Matches(msg, Keys.Home):
		m.Review.JumpToStart()
	case key.Matches(msg, Keys.End):
		m.Review.JumpToEnd()
	case key.Matches(msg, Keys.NextMarked):
		m.Review.CycleMarked(navigation.Forward)
	case key.Matches(msg, Keys.PrevMarked):
		m.Review.CycleMarked(navigation.Backward)
	case key.Matches(msg, Keys.JumpToName):
		m.State = StatePrompt
		m.Prompt.Open(components.PromptJump, "")

	// Review
	case key.Matches(msg, Keys.Rate):
		m.Review.SetRating(domain.Rating(msg.String()[0] - '0'))
	case key.Matches(msg, Keys.ToggleMark):
		m.Review.ToggleMarked()

	// Filters
	case key.Matches(msg, Keys.ShowAll):
		m.nameFilter = ""
		m.Review.SetFilter(navigation.All())
	case key.Matches(msg, Keys.ShowUnrated):
		m.nameFilter = ""
		m.Review.SetFilter(navigation.Unrated())
	case key.Matches(msg, Keys.ShowAtLeast):
		m.nameFilter = ""
		m.Review.SetFilter(navigation.RatingAtLeast(shiftedDigits[msg.String()]))
	case key.Matches(msg, Keys.ShowMarked):
		m.nameFilter = ""
		m.Review.ShowMarked()
	case key.Matches(msg, Keys.NameFilter):
		m.State = StatePrompt
		m.Prompt.Open(components.PromptNameFilter, m.nameFilter)

	// Actions
	case key.Matches(msg, Keys.Open):
		if !m.Snapshot.HasItem || m.Opener == nil {
			return m, nil
		}
		return m, OpenCmd(m.Opener, m.Snapshot.Item)
	case key.Matches(msg, Keys.Rescan):
		m.Review.Rescan()
		m.StatusMsg = "Rescanning..."
		m.StatusIsErr = false
		return m, ClearStatusCmd(2 * time.Second)
	case key.Matches(msg, Keys.ShowStats):
		m.ShowStats = !m.ShowStats
	}
	return m, nil
}

// handlePromptKey routes keys to the prompt and applies a submitted value
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var action components.PromptAction
	m.Prompt, cmd, action = m.Prompt.Update(msg)
	switch action {
	case components.PromptCancelled:
		m.State = StateReviewing
		return m, cmd
	case components.PromptEditing:
		return m, cmd
	}

	m.State = StateReviewing
	value := m.Prompt.Value()
	switch m.Prompt.Kind() {
	case components.PromptNameFilter:
		m.nameFilter = value
		if value == "" {
			m.Review.SetFilter(navigation.All())
		} else {
			m.Review.SetFilter(navigation.NameContains(value))
		}
	case components.PromptJump:
		m.Review.JumpToName(value)
	}
	return m, cmd
}
