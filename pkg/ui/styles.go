package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Italic(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E293B")).
			Background(lipgloss.Color("#E2E8F0")).
			Padding(0, 1)
	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E3A8A")).
			Background(lipgloss.Color("#DBEAFE")).
			Padding(0, 1)
)
