// Package tui is the terminal front end. It renders published review state
// and turns key presses into review commands; it never waits on a decode.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/navigation"
	"github.com/mmcdole/culler/internal/service"
	"github.com/mmcdole/culler/internal/tui/components"
	"github.com/mmcdole/culler/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateReviewing ApplicationState = iota
	StatePrompt
	StateHelp
)

// Vertical chrome: header, info line, footer
const ChromeHeight = 3

// Reviewer is the part of the review session the UI drives
type Reviewer interface {
	State() service.State
	Subscribe() <-chan service.Update
	CurrentImage() (domain.Item, cache.Lookup)
	Stats() service.Stats

	Advance(delta int)
	JumpToStart()
	JumpToEnd()
	JumpToName(query string)
	CycleMarked(dir navigation.Direction)
	SetFilter(f navigation.Filter)
	ShowMarked()
	SetRating(r domain.Rating)
	ToggleMarked()
	Rescan()
}

// Opener shows a file in an external program
type Opener interface {
	Open(path string) error
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	Review  Reviewer
	Opener  Opener
	updates <-chan service.Update

	// UI Components
	Prompt components.Prompt
	Help   help.Model

	// Data
	Snapshot   service.State
	nameFilter string // Last submitted name filter, prefilled on reopen

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	ShowStats    bool
	SpinnerFrame int
	ticking      bool

	frame *frameCache
}

// NewModel creates a model bound to a running review session
func NewModel(review Reviewer, opener Opener, showHelp bool) Model {
	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpDescStyle
	m := Model{
		Review:   review,
		Opener:   opener,
		updates:  review.Subscribe(),
		Prompt:   components.NewPrompt(),
		Help:     h,
		Snapshot: review.State(),
		frame:    &frameCache{},
		ticking:  true, // Init starts the first tick
	}
	if showHelp {
		m.StatusMsg = "? for help"
	}
	return m
}

// Init starts listening for review updates
func (m Model) Init() tea.Cmd {
	return tea.Batch(WaitForUpdateCmd(m.updates), TickCmd())
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.Ready = true
		return m, nil

	case UpdateMsg:
		m.Snapshot = msg.State
		var cmds []tea.Cmd
		cmds = append(cmds, WaitForUpdateCmd(m.updates))
		if msg.Err != nil {
			m.StatusMsg = msg.Err.Error()
			m.StatusIsErr = true
			cmds = append(cmds, ClearStatusCmd(3*time.Second))
		}
		cmds = append(cmds, m.startSpinner())
		return m, tea.Batch(cmds...)

	case UpdatesClosedMsg:
		return m, tea.Quit

	case TickMsg:
		m.SpinnerFrame++
		m.ticking = false
		return m, m.startSpinner()

	case StatusMsg:
		m.StatusMsg = msg.Text
		m.StatusIsErr = false
		return m, ClearStatusCmd(2 * time.Second)

	case ErrMsg:
		m.StatusMsg = msg.Error()
		m.StatusIsErr = true
		return m, ClearStatusCmd(3 * time.Second)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.State == StatePrompt {
		var cmd tea.Cmd
		m.Prompt, cmd, _ = m.Prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

// startSpinner schedules a tick while the current image is still loading
func (m *Model) startSpinner() tea.Cmd {
	if m.ticking || !m.Snapshot.HasItem {
		return nil
	}
	if _, l := m.Review.CurrentImage(); l.State != cache.StatePending && l.State != cache.StateAbsent {
		return nil
	}
	m.ticking = true
	return TickCmd()
}
