package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for terminal output.
var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")) // red
	codeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray
	dataStyle  = lipgloss.NewStyle().PaddingLeft(2)
	titleStyle = lipgloss.NewStyle().Bold(true)

	// Diff styles.
	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	diffHunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)
