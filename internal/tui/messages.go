package tui

import "github.com/mmcdole/culler/internal/service"

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// UpdateMsg carries a published review update
type UpdateMsg struct {
	service.Update
}

// UpdatesClosedMsg signals that the review session shut down
type UpdatesClosedMsg struct{}

// StatusMsg shows a transient footer message
type StatusMsg struct {
	Text string
}

// ClearStatusMsg clears the footer message
type ClearStatusMsg struct{}

// TickMsg advances the pending-load spinner
type TickMsg struct{}
