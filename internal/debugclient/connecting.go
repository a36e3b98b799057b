package debugclient

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/handshake"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	puser "github.com/tere-shell/tere-go/proto/ptyuser"
	sp "github.com/tere-shell/tere-go/proto/sessions"
)

// connectRequest holds the fields collected by FormScreen, independent
// of the wire type so the form does not need to know about fds.
type connectRequest struct {
	Machine sp.Machine
	User    string
	Program *string
}

type connectedMsg struct {
	conn *seqpacket.Conn
	err  error
}

type connectingKeyMap struct {
	Quit key.Binding
}

// ConnectingScreen dials the sessions broker, issues a
// CreateShellSession request, and attaches to the resulting pty
// session, showing a spinner while it works.
type ConnectingScreen struct {
	keys       connectingKeyMap
	socketPath string
	req        connectRequest
	spinner    spinner.Model
	err        error
	width      int
	height     int
}

// NewConnectingScreen builds the screen for the given broker socket and
// already-collected request fields.
func NewConnectingScreen(socketPath string, req connectRequest) ConnectingScreen {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return ConnectingScreen{
		keys:       connectingKeyMap{Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))},
		socketPath: socketPath,
		req:        req,
		spinner:    s,
	}
}

func (m ConnectingScreen) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect)
}

func (m ConnectingScreen) connect() tea.Msg {
	conn, err := createShellSession(m.socketPath, m.req)
	return connectedMsg{conn: conn, err: err}
}

// createShellSession performs the full client-side handoff: dial the
// broker, send CreateShellSession with one end of a fresh socket pair,
// and complete the pty_user handshake on the other end.
func createShellSession(socketPath string, req connectRequest) (*seqpacket.Conn, error) {
	broker, err := seqpacket.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing sessions broker: %w", err)
	}
	defer broker.Close()

	if err := handshake.AsClient(broker, sp.ClientIntent, sp.ServerIntent); err != nil {
		return nil, fmt.Errorf("sessions handshake: %w", err)
	}

	clientSide, serverSide, err := seqpacket.Pair()
	if err != nil {
		return nil, fmt.Errorf("creating client socket pair: %w", err)
	}
	fd, err := ownedfd.FromUnixConn(serverSide.Underlying())
	if err != nil {
		clientSide.Close()
		return nil, fmt.Errorf("taking fd from socket pair: %w", err)
	}

	create := &sp.CreateShellSession{
		Fd:      fd,
		Machine: req.Machine,
		User:    req.User,
		Program: req.Program,
	}
	if err := ipc.Send(broker, &sp.Request{CreateShellSession: create}); err != nil {
		clientSide.Close()
		return nil, fmt.Errorf("sending CreateShellSession: %w", err)
	}

	if err := handshake.AsClient(clientSide, puser.ClientIntent, puser.ServerIntent); err != nil {
		clientSide.Close()
		return nil, fmt.Errorf("pty_user handshake: %w", err)
	}
	return clientSide, nil
}

func (m ConnectingScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, pushScreen(NewAttachedScreen(msg.conn))

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, popScreen()
		}
	}
	return m, nil
}

func (m ConnectingScreen) View() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(colorError).Render(fmt.Sprintf("  connection failed: %v\n\n", m.err)))
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  press any key to go back"))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  %s connecting to %s as %s...\n", m.spinner.View(), m.req.Machine, m.req.User))
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("\n  ctrl+c quit"))
	return b.String()
}
