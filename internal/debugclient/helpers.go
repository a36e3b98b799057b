package debugclient

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pushScreenMsg tells the app to push a new screen onto the stack.
type pushScreenMsg struct {
	screen tea.Model
}

// popScreenMsg tells the app to pop the current screen.
type popScreenMsg struct{}

func pushScreen(s tea.Model) tea.Cmd {
	return func() tea.Msg {
		return pushScreenMsg{screen: s}
	}
}

func popScreen() tea.Cmd {
	return func() tea.Msg {
		return popScreenMsg{}
	}
}

var (
	colorPrimary = lipgloss.Color("#5FAFFF")
	colorDim     = lipgloss.Color("#808080")
	colorError   = lipgloss.Color("#FF5F5F")
)
