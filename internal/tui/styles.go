package tui

import "github.com/charmbracelet/lipgloss"

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cancelledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	budgetOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	budgetHotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	chapterTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	chapterIndexStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("220")).
				Bold(true)
)
