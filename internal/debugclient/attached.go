package debugclient

import (
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	puser "github.com/tere-shell/tere-go/proto/ptyuser"
)

type outputMsg struct {
	bytes []byte
}

type sessionEndedMsg struct {
	err error
}

// AttachedScreen relays raw keystrokes to the pty over conn and
// renders whatever output the pty sends back as a scrolling buffer
// (it does not implement a real terminal emulator: escape sequences
// are shown verbatim rather than interpreted).
type AttachedScreen struct {
	conn   *seqpacket.Conn
	output chan []byte
	done   chan error
	buf    []byte
	err    error
	width  int
	height int
}

// NewAttachedScreen takes ownership of conn, already past the
// pty_user handshake.
func NewAttachedScreen(conn *seqpacket.Conn) AttachedScreen {
	s := AttachedScreen{
		conn:   conn,
		output: make(chan []byte, 64),
		done:   make(chan error, 1),
	}
	go s.pump()
	return s
}

func (m AttachedScreen) pump() {
	for {
		msg, err := ipc.Receive[puser.Output, *puser.Output](m.conn)
		if err != nil {
			if ipc.IsEnd(err) {
				m.done <- io.EOF
			} else {
				m.done <- err
			}
			close(m.output)
			return
		}
		m.output <- msg.SessionOutput
	}
}

func waitForOutput(output chan []byte, done chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case b, ok := <-output:
			if !ok {
				return sessionEndedMsg{err: <-done}
			}
			return outputMsg{bytes: b}
		case err := <-done:
			return sessionEndedMsg{err: err}
		}
	}
}

func (m AttachedScreen) Init() tea.Cmd {
	return waitForOutput(m.output, m.done)
}

func (m AttachedScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case outputMsg:
		m.buf = append(m.buf, msg.bytes...)
		return m, waitForOutput(m.output, m.done)

	case sessionEndedMsg:
		m.err = msg.err
		m.conn.Close()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+x"))) {
			m.conn.Close()
			return m, popScreen()
		}
		if m.err != nil {
			return m, popScreen()
		}
		return m, m.sendKey(msg)
	}
	return m, nil
}

// sendKey converts a key event to the bytes a real terminal would
// have sent the pty and forwards them as keyboard input.
func (m AttachedScreen) sendKey(msg tea.KeyMsg) tea.Cmd {
	var b []byte
	switch msg.Type {
	case tea.KeyRunes:
		b = []byte(string(msg.Runes))
	case tea.KeyEnter:
		b = []byte{'\r'}
	case tea.KeyBackspace:
		b = []byte{0x7f}
	case tea.KeyTab:
		b = []byte{'\t'}
	case tea.KeyEsc:
		b = []byte{0x1b}
	case tea.KeySpace:
		b = []byte{' '}
	case tea.KeyCtrlC:
		b = []byte{0x03}
	case tea.KeyCtrlD:
		b = []byte{0x04}
	default:
		s := msg.String()
		if s != "" {
			b = []byte(s)
		}
	}
	if len(b) == 0 {
		return nil
	}
	conn := m.conn
	return func() tea.Msg {
		ipc.Send(conn, &puser.Input{KeyboardInput: b})
		return nil
	}
}

func (m AttachedScreen) View() string {
	var b strings.Builder
	b.Write(m.buf)
	if m.err != nil && m.err != io.EOF {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(colorError).Render("session ended: " + m.err.Error()))
	} else if m.err == io.EOF {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("session ended"))
	}
	return b.String()
}
