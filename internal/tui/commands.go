package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/service"
)

// Command factories for async operations

// WaitForUpdateCmd blocks until the review publishes, then hands the update
// to Update. It must be re-issued after every UpdateMsg.
func WaitForUpdateCmd(updates <-chan service.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return UpdatesClosedMsg{}
		}
		return UpdateMsg{Update: u}
	}
}

// OpenCmd shows an item in the external viewer
func OpenCmd(opener Opener, item domain.Item) tea.Cmd {
	return func() tea.Msg {
		if err := opener.Open(item.Path); err != nil {
			return ErrMsg{Err: err, Context: "opening " + item.Name()}
		}
		return StatusMsg{Text: "Opened " + item.Name()}
	}
}

// ClearStatusCmd clears the status message after a delay
func ClearStatusCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// TickCmd drives the spinner while the current image is loading
func TickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}
