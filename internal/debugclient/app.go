package debugclient

import (
	tea "github.com/charmbracelet/bubbletea"
)

// App is the top-level Bubbletea model holding a screen stack: a form
// to gather the CreateShellSession request, a connecting screen that
// performs it, and the attached terminal view.
type App struct {
	stack  []tea.Model
	width  int
	height int
}

// NewApp returns an App that will dial the sessions broker at
// socketPath once the operator submits the form.
func NewApp(socketPath string) App {
	return App{
		stack: []tea.Model{NewFormScreen(socketPath)},
	}
}

func (a App) Init() tea.Cmd {
	if len(a.stack) > 0 {
		return a.stack[len(a.stack)-1].Init()
	}
	return nil
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		for i, s := range a.stack {
			updated, _ := s.Update(msg)
			a.stack[i] = updated
		}
		return a, nil

	case pushScreenMsg:
		a.stack = append(a.stack, msg.screen)
		sized, cmd := msg.screen.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
		a.stack[len(a.stack)-1] = sized
		return a, tea.Batch(cmd, a.stack[len(a.stack)-1].Init())

	case popScreenMsg:
		if len(a.stack) <= 1 {
			return a, tea.Quit
		}
		a.stack = a.stack[:len(a.stack)-1]
		return a, nil

	case tea.KeyMsg:
		if len(a.stack) == 1 && msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	}

	if len(a.stack) > 0 {
		active := a.stack[len(a.stack)-1]
		updated, cmd := active.Update(msg)
		a.stack[len(a.stack)-1] = updated
		return a, cmd
	}
	return a, nil
}

func (a App) View() string {
	if len(a.stack) > 0 {
		return a.stack[len(a.stack)-1].View()
	}
	return ""
}
