// Package sessions implements the session broker: it accepts client
// connections requesting a new shell session, starts the session via a
// launcher.ShellLauncher, then hands off the resulting PTY to a pty
// relay service connection and attaches the requesting client to it.
package sessions

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/handshake"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	"github.com/tere-shell/tere-go/internal/launcher"
	p "github.com/tere-shell/tere-go/proto/pty"
	sp "github.com/tere-shell/tere-go/proto/sessions"
)

// sessionIDSize matches the original 24-byte random session identifier.
const sessionIDSize = 24

// SessionID identifies one shell session the broker has started.
type SessionID [sessionIDSize]byte

func (id SessionID) String() string {
	return fmt.Sprintf("%x", id[:])
}

type sessionState int

const (
	sessionCreating sessionState = iota
	sessionReady
)

type session struct {
	mu sync.Mutex

	state sessionState
	// ptyServiceConn is the broker's connection to the pty relay service
	// handling this session. Set once the session reaches sessionReady;
	// the broker owns it for the session's lifetime and closes it when
	// the session is forgotten.
	ptyServiceConn *seqpacket.Conn
}

// Broker owns the shell-session bookkeeping and wires client requests
// through to a launcher and a pty relay service.
type Broker struct {
	Launcher       launcher.ShellLauncher
	PTYServicePath string

	mu       sync.Mutex
	sessions map[SessionID]*session
}

// NewBroker returns a Broker that starts sessions via l and hands them
// off to the pty relay service listening at ptyServicePath.
func NewBroker(l launcher.ShellLauncher, ptyServicePath string) *Broker {
	return &Broker{
		Launcher:       l,
		PTYServicePath: ptyServicePath,
		sessions:       make(map[SessionID]*session),
	}
}

// Serve accepts connections from listener until it returns an error
// (typically because it was closed), serving each on its own goroutine.
func (b *Broker) Serve(listener *seqpacket.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("sessions: accept: %w", err)
		}
		go func() {
			defer conn.Close()
			if err := b.serveConn(context.Background(), conn); err != nil {
				logrus.WithError(err).Warn("sessions: connection ended with an error")
			}
		}()
	}
}

func (b *Broker) serveConn(ctx context.Context, conn ipc.Transport) error {
	if err := handshake.AsServer(conn, sp.ClientIntent, sp.ServerIntent); err != nil {
		return fmt.Errorf("sessions: handshake: %w", err)
	}

	for {
		req, err := ipc.Receive[sp.Request, *sp.Request](conn)
		if err != nil {
			if ipc.IsEnd(err) {
				return nil
			}
			return fmt.Errorf("sessions: receive request: %w", err)
		}
		switch {
		case req.CreateShellSession != nil:
			if err := b.createShellSession(ctx, req.CreateShellSession); err != nil {
				// A single bad request does not tear down the connection:
				// log it and keep serving whatever comes next.
				logrus.WithError(err).Error("sessions: create shell session failed")
			}
		default:
			logrus.Warn("sessions: received a Request with no variant set")
		}
	}
}

func (b *Broker) createShellSession(ctx context.Context, create *sp.CreateShellSession) error {
	if err := create.ValidateMachine(); err != nil {
		return err
	}

	id, err := b.reserveSessionID()
	if err != nil {
		return fmt.Errorf("reserving session id: %w", err)
	}
	logrus.WithField("session_id", id).Info("sessions: creating shell session")

	machineName := ".host"
	if name, ok := create.Machine.ContainerName(); ok {
		machineName = name
	}
	spec := launcher.ShellSpec{
		Machine: machineName,
		User:    create.User,
	}
	if create.Program != nil {
		spec.Program = *create.Program
	}
	if create.Args != nil {
		spec.Args = *create.Args
	}
	if create.Env != nil {
		spec.Env = *create.Env
	}

	pty, err := b.Launcher.CreateShell(ctx, spec)
	if err != nil {
		b.forgetSession(id)
		return fmt.Errorf("starting shell session: %w", err)
	}

	ptyConn, err := seqpacket.Dial(b.PTYServicePath)
	if err != nil {
		pty.Close()
		b.forgetSession(id)
		return fmt.Errorf("connecting to pty service: %w", err)
	}
	if err := handshake.AsClient(ptyConn, p.ClientIntent, p.ServerIntent); err != nil {
		pty.Close()
		ptyConn.Close()
		b.forgetSession(id)
		return fmt.Errorf("handshake with pty service: %w", err)
	}

	if err := ipc.Send(ptyConn, &p.Init{PTYFd: pty.TakeFD()}); err != nil {
		ptyConn.Close()
		b.forgetSession(id)
		return fmt.Errorf("sending Init to pty service: %w", err)
	}

	b.markReady(id, ptyConn)

	if err := ipc.Send(ptyConn, &p.Request{NewClient: &p.RequestNewClient{Fd: create.Fd}}); err != nil {
		b.forgetSession(id)
		return fmt.Errorf("attaching client to pty service: %w", err)
	}
	return nil
}

func (b *Broker) reserveSessionID() (SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		var id SessionID
		if _, err := rand.Read(id[:]); err != nil {
			return SessionID{}, err
		}
		if _, exists := b.sessions[id]; exists {
			continue
		}
		b.sessions[id] = &session{state: sessionCreating}
		return id, nil
	}
}

func (b *Broker) markReady(id SessionID, conn *seqpacket.Conn) {
	b.mu.Lock()
	s := b.sessions[id]
	b.mu.Unlock()
	if s == nil {
		conn.Close()
		return
	}
	s.mu.Lock()
	s.state = sessionReady
	s.ptyServiceConn = conn
	s.mu.Unlock()
}

// forgetSession removes id from the session table and closes its pty
// service connection, if any was ever recorded for it.
func (b *Broker) forgetSession(id SessionID) {
	b.mu.Lock()
	s := b.sessions[id]
	delete(b.sessions, id)
	b.mu.Unlock()
	if s == nil {
		return
	}
	s.mu.Lock()
	conn := s.ptyServiceConn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
