// Package ui is the terminal control panel of autoeval: start, pause,
// stop, the multi-entity and auto-submit switches, quota adjustment and a
// live view of what the engine is doing.
package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Primary     = lipgloss.AdaptiveColor{Light: "#0770cd", Dark: "#4da3ff"}
	Muted       = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	Border      = lipgloss.AdaptiveColor{Light: "#dce0e5", Dark: "#2a3850"}
	Success     = lipgloss.Color("#27ae60")
	Warning     = lipgloss.Color("#f39c12")
	Destructive = lipgloss.Color("#e74c3c")
	Info        = lipgloss.Color("#2196F3")
)

// Styles holds the panel's lipgloss styles.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Box     lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
}

// DefaultStyles returns the styles, without color when NO_COLOR is set.
func DefaultStyles() Styles {
	s := Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(Primary).Padding(0, 1),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Border).Padding(0, 1),
		Bold:    lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Info:    lipgloss.NewStyle().Foreground(Info),
		Success: lipgloss.NewStyle().Foreground(Success),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Error:   lipgloss.NewStyle().Foreground(Destructive),
		Key:     lipgloss.NewStyle().Bold(true).Foreground(Primary),
	}
	if noColor() {
		plain := lipgloss.NewStyle()
		s = Styles{
			Title: plain.Bold(true), Header: plain.Bold(true), Box: plain.Border(lipgloss.NormalBorder()),
			Bold: plain.Bold(true), Muted: plain, Info: plain, Success: plain, Warning: plain, Error: plain, Key: plain.Bold(true),
		}
	}
	return s
}

func noColor() bool {
	v, ok := os.LookupEnv("NO_COLOR")
	return ok && strings.TrimSpace(v) != "0"
}
