package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Minimal color palette
var (
	DimColor     = lipgloss.Color("#6c6c6c")
	TextColor    = lipgloss.Color("#e0e0e0")
	AccentColor  = lipgloss.Color("#7aa2f7")
	ErrorColor   = lipgloss.Color("#f7768e")
	SuccessColor = lipgloss.Color("#9ece6a")
	WarnColor    = lipgloss.Color("#e0af68")
)

// Line styles
var (
	InfoStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(WarnColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimColor)

	HeadingStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)
)

// Line prefixes
const (
	InfoPrefix    = "› "
	SuccessPrefix = "✓ "
	WarnPrefix    = "! "
	ErrorPrefix   = "✗ "
)
