package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
)

// Title style for section headers.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1)

// Banner style for the headline of a result.
var Banner = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// Handle style for @handles.
var Handle = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Bold(true)

// Body style for post text.
var Body = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	PaddingLeft(2)

// Muted style for secondary details (reasons, urls).
var Muted = lipgloss.NewStyle().
	Foreground(colorSecondary)

// Dim style for counters and timestamps.
var Dim = lipgloss.NewStyle().
	Foreground(colorMuted)

// Score style for numeric scores.
var Score = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// Badge style for small labels such as kinds and verified marks.
var Badge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// Warning style for degraded results.
var Warning = lipgloss.NewStyle().
	Foreground(colorWarning)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true)

// SpinnerStyle colors the progress spinner.
var SpinnerStyle = lipgloss.NewStyle().
	Foreground(colorSuccess)
