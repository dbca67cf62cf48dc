// Package console is an optional, operator-facing live view of the
// simulator's running state: accepted connections, their session
// handles, and CIP connection ids. It is a read-mostly window onto
// internal/simserver.Server's Snapshot; it never participates in wire
// decoding and must never block or slow down a connection worker.
package console

import "github.com/charmbracelet/lipgloss"

// Theme is the console's color palette, a Tokyo-Night cut narrowed to
// what a single status table needs.
type Theme struct {
	Border  lipgloss.Color
	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	TextDim lipgloss.Color
}

// DefaultTheme is the console's fixed color palette.
var DefaultTheme = Theme{
	Border:  lipgloss.Color("#414868"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	TextDim: lipgloss.Color("#565f89"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(DefaultTheme.Accent)
	dimStyle   = lipgloss.NewStyle().Foreground(DefaultTheme.TextDim)
	okStyle    = lipgloss.NewStyle().Foreground(DefaultTheme.Success)
	warnStyle  = lipgloss.NewStyle().Foreground(DefaultTheme.Warning)
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(DefaultTheme.Border).Padding(0, 1)
)
