package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Next       key.Binding
	Prev       key.Binding
	Home       key.Binding
	End        key.Binding
	NextMarked key.Binding
	PrevMarked key.Binding
	JumpToName key.Binding

	// Review
	Rate       key.Binding
	ToggleMark key.Binding

	// Filters
	ShowAll     key.Binding
	ShowUnrated key.Binding
	ShowAtLeast key.Binding
	ShowMarked  key.Binding
	NameFilter  key.Binding

	// Actions
	Open      key.Binding
	Rescan    key.Binding
	ShowStats key.Binding
	Quit      key.Binding
	Help      key.Binding
	Escape    key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		// Navigation
		Next: key.NewBinding(
			key.WithKeys("l", "right", "j", "down"),
			key.WithHelp("l/→", "next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("h", "left", "k", "up"),
			key.WithHelp("h/←", "previous"),
		),
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last"),
		),
		NextMarked: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next marked"),
		),
		PrevMarked: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "previous marked"),
		),
		JumpToName: key.NewBinding(
			key.WithKeys("f", ":"),
			key.WithHelp("f", "jump to file"),
		),

		// Review
		Rate: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5"),
			key.WithHelp("0-5", "rate (0 clears)"),
		),
		ToggleMark: key.NewBinding(
			key.WithKeys("m", " "),
			key.WithHelp("m/space", "toggle mark"),
		),

		// Filters
		ShowAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "show all"),
		),
		ShowUnrated: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "show unrated"),
		),
		ShowAtLeast: key.NewBinding(
			key.WithKeys("!", "@", "#", "$", "%"),
			key.WithHelp("⇧1-5", "show rated at least"),
		),
		ShowMarked: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "show marked"),
		),
		NameFilter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter by name"),
		),

		// Actions
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in viewer"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan folder"),
		),
		ShowStats: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle stats"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Rate, k.ToggleMark, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Home, k.End, k.NextMarked, k.PrevMarked, k.JumpToName},
		{k.Rate, k.ToggleMark, k.ShowAll, k.ShowUnrated, k.ShowAtLeast, k.ShowMarked, k.NameFilter},
		{k.Open, k.Rescan, k.ShowStats, k.Help, k.Escape, k.Quit},
	}
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()
