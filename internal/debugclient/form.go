package debugclient

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sp "github.com/tere-shell/tere-go/proto/sessions"
)

type formKeyMap struct {
	Next key.Binding
	Prev key.Binding
	Submit key.Binding
	Quit key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Quit}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Submit, k.Quit}}
}

// FormScreen gathers the fields of a CreateShellSession request:
// target machine ("" or "host" for the host, anything else names a
// container), the user to run as, and an optional program override.
type FormScreen struct {
	keys       formKeyMap
	socketPath string
	inputs     []textinput.Model
	focus      int
	width      int
	height     int
}

const (
	fieldMachine = iota
	fieldUser
	fieldProgram
	fieldCount
)

// NewFormScreen builds the form, pre-filling it from the operator's
// saved defaults when available.
func NewFormScreen(socketPath string) FormScreen {
	inputs := make([]textinput.Model, fieldCount)

	machine := textinput.New()
	machine.Placeholder = "host"
	machine.Prompt = "Machine ('host' or a container name): "
	inputs[fieldMachine] = machine

	user := textinput.New()
	user.Placeholder = "root"
	user.Prompt = "User: "
	inputs[fieldUser] = user

	program := textinput.New()
	program.Placeholder = "(launcher default)"
	program.Prompt = "Program: "
	inputs[fieldProgram] = program

	if defaults, err := LoadDefaults(); err == nil {
		inputs[fieldMachine].SetValue(defaults.Machine)
		inputs[fieldUser].SetValue(defaults.User)
		inputs[fieldProgram].SetValue(defaults.Program)
	}

	inputs[fieldMachine].Focus()

	return FormScreen{
		keys: formKeyMap{
			Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
			Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
			Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
		socketPath: socketPath,
		inputs:     inputs,
	}
}

func (m FormScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (m FormScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()
		case key.Matches(msg, m.keys.Next):
			m.inputs[m.focus].Blur()
			m.focus = (m.focus + 1) % fieldCount
			m.inputs[m.focus].Focus()
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.inputs[m.focus].Blur()
			m.focus = (m.focus - 1 + fieldCount) % fieldCount
			m.inputs[m.focus].Focus()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m FormScreen) submit() tea.Cmd {
	machineName := strings.TrimSpace(m.inputs[fieldMachine].Value())
	user := strings.TrimSpace(m.inputs[fieldUser].Value())
	program := strings.TrimSpace(m.inputs[fieldProgram].Value())

	machine := sp.MachineHost()
	if machineName != "" && machineName != "host" {
		machine = sp.MachineContainer(machineName)
	}

	_ = SaveDefaults(&Defaults{Machine: machineName, User: user, Program: program})

	req := connectRequest{Machine: machine, User: user}
	if program != "" {
		req.Program = &program
	}
	return pushScreen(NewConnectingScreen(m.socketPath, req))
}

func (m FormScreen) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render("tere debug client"))
	b.WriteString("\n\n")
	for i, in := range m.inputs {
		b.WriteString(in.View())
		if i < len(m.inputs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("tab next field • enter connect • ctrl+c quit"))
	return b.String()
}
