// Package sessions defines the wire messages exchanged with the session
// broker: requests to create a new shell session, identifying the target
// machine, the user to run as, and the client fd to hand the new pty
// client.
package sessions

import (
	"fmt"
	"strings"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

const (
	// ClientIntent identifies a connection to the session broker.
	ClientIntent = "tere 2021-07-01T19:41:51 sessions client"
	// ServerIntent identifies the session broker.
	ServerIntent = "tere 2021-07-01T19:42:20 sessions server"
)

type machineKind uint32

const (
	machineKindHost machineKind = iota
	machineKindContainer
)

// Machine names the target the broker should start a shell session on.
type Machine struct {
	// container holds the container name when kind is machineKindContainer.
	// The zero value (kind 0) means the host.
	kind      machineKind
	container string
}

// MachineHost targets the host itself.
func MachineHost() Machine { return Machine{kind: machineKindHost} }

// MachineContainer targets the named container. Names starting with "."
// are rejected at use-site (see internal/services/sessions) to force
// callers to use MachineHost instead.
func MachineContainer(name string) Machine {
	return Machine{kind: machineKindContainer, container: name}
}

// IsHost reports whether m targets the host.
func (m Machine) IsHost() bool { return m.kind == machineKindHost }

// ContainerName returns the container name and true, or ("", false) if
// m targets the host.
func (m Machine) ContainerName() (string, bool) {
	if m.kind != machineKindContainer {
		return "", false
	}
	return m.container, true
}

func (m Machine) String() string {
	if m.IsHost() {
		return "host"
	}
	return "container:" + m.container
}

func putMachine(e *wire.Encoder, m Machine) {
	e.PutUint32(uint32(m.kind))
	if m.kind == machineKindContainer {
		e.PutString(m.container)
	}
}

func getMachine(d *wire.Decoder) (Machine, error) {
	kind, err := d.GetUint32()
	if err != nil {
		return Machine{}, err
	}
	switch machineKind(kind) {
	case machineKindHost:
		return MachineHost(), nil
	case machineKindContainer:
		name, err := d.GetString()
		if err != nil {
			return Machine{}, err
		}
		return MachineContainer(name), nil
	default:
		return Machine{}, fmt.Errorf("sessions: unknown Machine discriminant %d", kind)
	}
}

// CreateShellSession asks the broker to start a new shell session and
// attach fd to its pty.
type CreateShellSession struct {
	Fd      *ownedfd.FD
	Machine Machine
	User    string
	Program *string
	Args    *[]string
	Env     *[]string
}

// ValidateMachine rejects a container name beginning with ".", which is
// reserved to force callers through MachineHost instead.
func (c CreateShellSession) ValidateMachine() error {
	if name, ok := c.Machine.ContainerName(); ok && strings.HasPrefix(name, ".") {
		return fmt.Errorf("sessions: container name %q must not start with \".\"", name)
	}
	return nil
}

type requestKind uint32

const requestKindCreateShellSession requestKind = 0

// Request is the session broker's client-facing request union.
type Request struct {
	wire.DefaultLimits
	CreateShellSession *CreateShellSession
}

func (m *Request) MaxFDs() int { return 1 }

func (m *Request) MarshalIPC(e *wire.Encoder) error {
	switch {
	case m.CreateShellSession != nil:
		c := m.CreateShellSession
		e.PutUint32(uint32(requestKindCreateShellSession))
		e.PutFD(c.Fd.Release())
		putMachine(e, c.Machine)
		e.PutString(c.User)
		e.PutOptionalString(c.Program)
		e.PutOptionalStringSlice(c.Args)
		e.PutOptionalStringSlice(c.Env)
		return nil
	default:
		return fmt.Errorf("sessions: Request has no variant set")
	}
}

func (m *Request) UnmarshalIPC(d *wire.Decoder) error {
	kind, err := d.GetUint32()
	if err != nil {
		return err
	}
	switch requestKind(kind) {
	case requestKindCreateShellSession:
		fd, err := d.TakeFD()
		if err != nil {
			return err
		}
		machine, err := getMachine(d)
		if err != nil {
			return err
		}
		user, err := d.GetString()
		if err != nil {
			return err
		}
		program, err := d.GetOptionalString()
		if err != nil {
			return err
		}
		args, err := d.GetOptionalStringSlice()
		if err != nil {
			return err
		}
		env, err := d.GetOptionalStringSlice()
		if err != nil {
			return err
		}
		m.CreateShellSession = &CreateShellSession{
			Fd:      fd,
			Machine: machine,
			User:    user,
			Program: program,
			Args:    args,
			Env:     env,
		}
		return nil
	default:
		return fmt.Errorf("sessions: unknown Request discriminant %d", kind)
	}
}
